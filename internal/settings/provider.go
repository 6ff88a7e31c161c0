// Package settings persists the user-editable application settings as a JSON file.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/pkg/clock"
)

const (
	appDir       = "taskwarlock"
	fileName     = "settings.json"
	dockerMarker = "/.dockerenv"
	cgroupFile   = "/proc/1/cgroup"

	// DefaultTTL bounds how long a read is reused before the file is consulted again.
	DefaultTTL = 5 * time.Second
)

// DefaultPath resolves the settings file location from the environment.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return resolvePath(os.Getenv, home, inContainer())
}

func inContainer() bool {
	if _, err := os.Stat(dockerMarker); err == nil {
		return true
	}
	data, err := os.ReadFile(cgroupFile)
	if err != nil {
		return false
	}
	return containerCgroup(string(data))
}

func containerCgroup(cgroup string) bool {
	return strings.Contains(cgroup, "docker") || strings.Contains(cgroup, "containerd")
}

func resolvePath(getenv func(string) string, home string, inDocker bool) string {
	if p := getenv("SETTINGS_FILE"); p != "" {
		return p
	}
	if inDocker {
		return filepath.Join(home, "."+appDir, fileName)
	}
	base := getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appDir, fileName)
}

// Option configures a Provider.
type Option func(*Provider)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) { p.ttl = ttl }
}

// WithClock injects the time source used for the read cache.
func WithClock(c clock.Clock) Option {
	return func(p *Provider) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// Provider reads and writes the settings file with a short-lived read cache.
type Provider struct {
	path   string
	ttl    time.Duration
	clock  clock.Clock
	logger *zap.Logger

	mu       sync.Mutex
	cached   domain.Settings
	loadedAt time.Time
	valid    bool
}

// NewProvider creates a provider for path.
func NewProvider(path string, opts ...Option) *Provider {
	p := &Provider{
		path:   path,
		ttl:    DefaultTTL,
		clock:  clock.System(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Path returns the settings file location.
func (p *Provider) Path() string { return p.path }

// Current returns the settings, re-reading the file once the cache expires.
// Missing keys take their defaults; an unreadable file yields the defaults.
func (p *Provider) Current() domain.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if p.valid && now.Sub(p.loadedAt) < p.ttl {
		return p.cached
	}

	s, err := p.load()
	if err != nil {
		p.logger.Error("failed to read settings, using defaults", zap.String("path", p.path), zap.Error(err))
		s = domain.DefaultSettings()
	}
	p.cached = s
	p.loadedAt = now
	p.valid = true
	return s
}

// Update merges patch into the current settings and persists the result.
func (p *Provider) Update(patch domain.SettingsPatch) (domain.Settings, error) {
	current := p.Current()
	next, err := patch.Apply(current)
	if err != nil {
		return current, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.write(next); err != nil {
		return current, domain.WrapError(domain.ErrCodeInternal, "failed to write settings", err)
	}
	p.cached = next
	p.loadedAt = p.clock.Now()
	p.valid = true
	p.logger.Info("settings updated", zap.String("path", p.path))
	return next, nil
}

// Invalidate drops the read cache.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.valid = false
	p.mu.Unlock()
}

func (p *Provider) load() (domain.Settings, error) {
	if err := p.ensureFile(); err != nil {
		return domain.Settings{}, err
	}

	def := domain.DefaultSettings()
	v := viper.New()
	v.SetConfigFile(p.path)
	v.SetConfigType("json")
	v.SetDefault("autoSync", def.AutoSync)
	v.SetDefault("theme", def.Theme)
	v.SetDefault("urgencyAgeMax", def.UrgencyAgeMax)
	v.SetDefault("defaultPageSize", def.DefaultPageSize)
	v.SetDefault("urgencyCoefficients.next", def.UrgencyCoefficients.Next)
	v.SetDefault("urgencyCoefficients.due", def.UrgencyCoefficients.Due)
	v.SetDefault("urgencyCoefficients.priorityH", def.UrgencyCoefficients.PriorityH)
	v.SetDefault("urgencyCoefficients.priorityM", def.UrgencyCoefficients.PriorityM)
	v.SetDefault("urgencyCoefficients.priorityL", def.UrgencyCoefficients.PriorityL)
	v.SetDefault("urgencyCoefficients.age", def.UrgencyCoefficients.Age)
	v.SetDefault("urgencyCoefficients.tags", def.UrgencyCoefficients.Tags)
	v.SetDefault("urgencyCoefficients.project", def.UrgencyCoefficients.Project)

	if err := v.ReadInConfig(); err != nil {
		return domain.Settings{}, fmt.Errorf("reading settings %s: %w", p.path, err)
	}

	var s domain.Settings
	if err := v.Unmarshal(&s); err != nil {
		return domain.Settings{}, fmt.Errorf("parsing settings %s: %w", p.path, err)
	}
	return p.sanitize(s), nil
}

func (p *Provider) sanitize(s domain.Settings) domain.Settings {
	def := domain.DefaultSettings()
	coeffs, replaced := s.UrgencyCoefficients.Sanitize()
	if len(replaced) > 0 {
		p.logger.Warn("negative urgency coefficients replaced with defaults", zap.Strings("coefficients", replaced))
	}
	s.UrgencyCoefficients = coeffs
	if s.UrgencyAgeMax <= 0 {
		p.logger.Warn("invalid urgencyAgeMax, using default", zap.Int("value", s.UrgencyAgeMax))
		s.UrgencyAgeMax = def.UrgencyAgeMax
	}
	if s.DefaultPageSize <= 0 {
		s.DefaultPageSize = def.DefaultPageSize
	}
	return s
}

func (p *Provider) ensureFile() error {
	_, err := os.Stat(p.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	p.logger.Info("creating default settings file", zap.String("path", p.path))
	return p.write(domain.DefaultSettings())
}

// write replaces the file atomically so watchers never observe a partial document.
func (p *Provider) write(s domain.Settings) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating settings directory %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, fileName+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p.path)
}

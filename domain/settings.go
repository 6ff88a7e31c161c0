package domain

import "fmt"

// UrgencyCoefficients are the user-tunable weights of each urgency factor.
type UrgencyCoefficients struct {
	Next      float64 `json:"next" mapstructure:"next"`
	Due       float64 `json:"due" mapstructure:"due"`
	PriorityH float64 `json:"priorityH" mapstructure:"priorityH"`
	PriorityM float64 `json:"priorityM" mapstructure:"priorityM"`
	PriorityL float64 `json:"priorityL" mapstructure:"priorityL"`
	Age       float64 `json:"age" mapstructure:"age"`
	Tags      float64 `json:"tags" mapstructure:"tags"`
	Project   float64 `json:"project" mapstructure:"project"`
}

// DefaultUrgencyCoefficients mirrors Taskwarrior's stock urgency configuration.
func DefaultUrgencyCoefficients() UrgencyCoefficients {
	return UrgencyCoefficients{
		Next:      15.0,
		Due:       12.0,
		PriorityH: 6.0,
		PriorityM: 3.9,
		PriorityL: 1.8,
		Age:       2.0,
		Tags:      1.0,
		Project:   1.0,
	}
}

// DefaultUrgencyAgeMax is the age in days at which the age factor saturates.
const DefaultUrgencyAgeMax = 365

// Validate rejects negative weights.
func (c UrgencyCoefficients) Validate() error {
	for name, v := range c.fields() {
		if v < 0 {
			return NewError(ErrCodeInvalid, fmt.Sprintf("urgency coefficient %q must not be negative", name))
		}
	}
	return nil
}

// Sanitize replaces negative weights with their defaults and reports which ones were replaced.
func (c UrgencyCoefficients) Sanitize() (UrgencyCoefficients, []string) {
	def := DefaultUrgencyCoefficients()
	var replaced []string
	fix := func(name string, v *float64, fallback float64) {
		if *v < 0 {
			*v = fallback
			replaced = append(replaced, name)
		}
	}
	fix("next", &c.Next, def.Next)
	fix("due", &c.Due, def.Due)
	fix("priorityH", &c.PriorityH, def.PriorityH)
	fix("priorityM", &c.PriorityM, def.PriorityM)
	fix("priorityL", &c.PriorityL, def.PriorityL)
	fix("age", &c.Age, def.Age)
	fix("tags", &c.Tags, def.Tags)
	fix("project", &c.Project, def.Project)
	return c, replaced
}

func (c UrgencyCoefficients) fields() map[string]float64 {
	return map[string]float64{
		"next":      c.Next,
		"due":       c.Due,
		"priorityH": c.PriorityH,
		"priorityM": c.PriorityM,
		"priorityL": c.PriorityL,
		"age":       c.Age,
		"tags":      c.Tags,
		"project":   c.Project,
	}
}

// Settings is the persisted application configuration edited from the settings page.
type Settings struct {
	AutoSync            bool                `json:"autoSync" mapstructure:"autoSync"`
	Theme               string              `json:"theme" mapstructure:"theme"`
	UrgencyAgeMax       int                 `json:"urgencyAgeMax" mapstructure:"urgencyAgeMax"`
	UrgencyCoefficients UrgencyCoefficients `json:"urgencyCoefficients" mapstructure:"urgencyCoefficients"`
	DefaultPageSize     int                 `json:"defaultPageSize" mapstructure:"defaultPageSize"`
}

// DefaultSettings is used when no settings file exists or it cannot be read.
func DefaultSettings() Settings {
	return Settings{
		AutoSync:            false,
		Theme:               "catppuccin-mocha",
		UrgencyAgeMax:       DefaultUrgencyAgeMax,
		UrgencyCoefficients: DefaultUrgencyCoefficients(),
		DefaultPageSize:     20,
	}
}

// SettingsPatch is a partial settings update. Coefficients merge field by field.
type SettingsPatch struct {
	AutoSync            *bool                     `json:"autoSync,omitempty"`
	Theme               *string                   `json:"theme,omitempty"`
	UrgencyAgeMax       *int                      `json:"urgencyAgeMax,omitempty"`
	UrgencyCoefficients *UrgencyCoefficientsPatch `json:"urgencyCoefficients,omitempty"`
	DefaultPageSize     *int                      `json:"defaultPageSize,omitempty"`
}

// UrgencyCoefficientsPatch updates individual coefficients.
type UrgencyCoefficientsPatch struct {
	Next      *float64 `json:"next,omitempty"`
	Due       *float64 `json:"due,omitempty"`
	PriorityH *float64 `json:"priorityH,omitempty"`
	PriorityM *float64 `json:"priorityM,omitempty"`
	PriorityL *float64 `json:"priorityL,omitempty"`
	Age       *float64 `json:"age,omitempty"`
	Tags      *float64 `json:"tags,omitempty"`
	Project   *float64 `json:"project,omitempty"`
}

// Apply returns current with the patch merged in, validated.
func (p SettingsPatch) Apply(current Settings) (Settings, error) {
	out := current
	if p.AutoSync != nil {
		out.AutoSync = *p.AutoSync
	}
	if p.Theme != nil {
		out.Theme = *p.Theme
	}
	if p.UrgencyAgeMax != nil {
		if *p.UrgencyAgeMax <= 0 {
			return current, NewError(ErrCodeInvalid, "urgencyAgeMax must be positive")
		}
		out.UrgencyAgeMax = *p.UrgencyAgeMax
	}
	if p.DefaultPageSize != nil {
		if *p.DefaultPageSize <= 0 {
			return current, NewError(ErrCodeInvalid, "defaultPageSize must be positive")
		}
		out.DefaultPageSize = *p.DefaultPageSize
	}
	if c := p.UrgencyCoefficients; c != nil {
		set := func(dst *float64, v *float64) {
			if v != nil {
				*dst = *v
			}
		}
		set(&out.UrgencyCoefficients.Next, c.Next)
		set(&out.UrgencyCoefficients.Due, c.Due)
		set(&out.UrgencyCoefficients.PriorityH, c.PriorityH)
		set(&out.UrgencyCoefficients.PriorityM, c.PriorityM)
		set(&out.UrgencyCoefficients.PriorityL, c.PriorityL)
		set(&out.UrgencyCoefficients.Age, c.Age)
		set(&out.UrgencyCoefficients.Tags, c.Tags)
		set(&out.UrgencyCoefficients.Project, c.Project)
	}
	if err := out.UrgencyCoefficients.Validate(); err != nil {
		return current, err
	}
	return out, nil
}

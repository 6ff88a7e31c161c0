package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskwarlock/domain"
)

func TestEnvelope_EncodeSuccessOmitsErrorFields(t *testing.T) {
	body, err := NewSuccess([]string{"a"}, ListMeta{Matched: 1, Limit: 10}).Encode()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, StatusSuccess, got["status"])
	assert.Equal(t, []any{"a"}, got["data"])
	assert.NotContains(t, got, "error")
	assert.NotContains(t, got, "code")
}

func TestEnvelope_EncodeError(t *testing.T) {
	body, err := NewError(string(domain.ErrCodeMissingOriginal), domain.ErrMissingOriginal.Error(), nil).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","code":"MISSING_ORIGINAL","error":"no original task data for the task being changed"}`, string(body))
}

func TestEnvelope_EncodeFallsBackOnUnsupportedData(t *testing.T) {
	body, err := NewSuccess(make(chan int), nil).Encode()
	require.Error(t, err)

	var got Envelope
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, string(domain.ErrCodeInternal), got.Code)
}

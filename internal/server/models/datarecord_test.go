package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMap_Value(t *testing.T) {
	v, err := JSONMap(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = JSONMap{"cron": "0 * * * *"}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"cron":"0 * * * *"}`, v.(string))
}

func TestJSONMap_Scan(t *testing.T) {
	tests := []struct {
		name    string
		src     any
		want    JSONMap
		wantErr bool
	}{
		{"null", nil, nil, false},
		{"bytes", []byte(`{"a":1}`), JSONMap{"a": float64(1)}, false},
		{"string", `{"nested":{"b":true}}`, JSONMap{"nested": map[string]any{"b": true}}, false},
		{"array is rejected", []byte(`[1,2]`), nil, true},
		{"wrong type", 42, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m JSONMap
			err := m.Scan(tt.src)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
		})
	}
}

func TestRefreshToken_Expired(t *testing.T) {
	now := time.Now()
	assert.False(t, (&RefreshToken{ExpiresAt: now.Add(time.Minute)}).Expired(now))
	assert.True(t, (&RefreshToken{ExpiresAt: now}).Expired(now))
	assert.True(t, (&RefreshToken{ExpiresAt: now.Add(-time.Minute)}).Expired(now))
}

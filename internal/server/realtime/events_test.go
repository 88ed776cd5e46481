package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSubscribePayload(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    FlexibleID
		wantErr bool
	}{
		{name: "number", in: map[string]any{"userId": 42}, want: 42},
		{name: "float from json", in: map[string]any{"userId": float64(7)}, want: 7},
		{name: "numeric string", in: map[string]any{"userId": "13"}, want: 13},
		{name: "missing", in: map[string]any{}, want: 0},
		{name: "empty string", in: map[string]any{"userId": ""}, want: 0},
		{name: "garbage", in: map[string]any{"userId": "abc"}, wantErr: true},
		{name: "fraction", in: map[string]any{"userId": 1.5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p SubscribePayload
			err := decodeAny(tt.in, &p)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.UserID)
		})
	}
}

func TestDecodeSessionRegisterPayload(t *testing.T) {
	var p SessionRegisterPayload
	require.NoError(t, decodeAny(map[string]any{"sessionId": "abc"}, &p))
	assert.Equal(t, "abc", p.SessionID)
	assert.Equal(t, "13", FlexibleID(13).String())
}

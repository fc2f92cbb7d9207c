package tags

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManaged_RoundTrip(t *testing.T) {
	created := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	in := Managed{
		Managed:  true,
		Kind:     "endpoint",
		RunID:    "5b1c7d1e-0000-4000-8000-000000000001",
		Created:  created,
		BaseName: "purchase-predictor",
	}

	azureTags := in.ToAzureTags(map[string]string{"team": "ml", KeyManaged: "false"})
	assert.Equal(t, "ml", azureTags["team"])
	assert.Equal(t, "true", azureTags[KeyManaged], "managed keys must override user tags")
	assert.Equal(t, "2026-10-15T09:30:00Z", azureTags[KeyCreated])

	out, err := ParseManaged(azureTags)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseManaged(t *testing.T) {
	tests := []struct {
		name    string
		tags    map[string]string
		want    Managed
		wantErr bool
	}{
		{
			name: "Unmanaged Resource",
			tags: map[string]string{"owner": "someone"},
			want: Managed{},
		},
		{
			name: "Nil Tags",
			tags: nil,
			want: Managed{},
		},
		{
			name: "Empty Created",
			tags: map[string]string{KeyManaged: "true", KeyCreated: ""},
			want: Managed{Managed: true},
		},
		{
			name: "Weakly Typed Bool",
			tags: map[string]string{KeyManaged: "1", KeyKind: "deployment"},
			want: Managed{Managed: true, Kind: "deployment"},
		},
		{
			name:    "Bad Timestamp",
			tags:    map[string]string{KeyManaged: "true", KeyCreated: "yesterday"},
			wantErr: true,
		},
		{
			name:    "Bad Bool",
			tags:    map[string]string{KeyManaged: "maybe"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseManaged(tt.tags)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

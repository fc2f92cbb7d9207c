package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistrationInfo(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    RegistrationInfo
		wantErr bool
	}{
		{
			name: "Valid",
			body: "model_name: purchase-predictor-model\nmodel_version: \"7\"\n",
			want: RegistrationInfo{ModelName: "purchase-predictor-model", ModelVersion: "7"},
		},
		{
			name: "Numeric Version",
			body: "model_name: m\nmodel_version: 7\n",
			want: RegistrationInfo{ModelName: "m", ModelVersion: "7"},
		},
		{
			name:    "Missing Version",
			body:    "model_name: m\n",
			wantErr: true,
		},
		{
			name:    "Not YAML",
			body:    "model_name: [unterminated",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "registration_info.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))

			got, err := LoadRegistrationInfo(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadRegistrationInfo() error = %v, wantErr %v", err, tt.wantErr)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := LoadRegistrationInfo(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRegistrationInfo_ModelRef(t *testing.T) {
	assert.Equal(t, "m:3", RegistrationInfo{ModelName: "m", ModelVersion: "3"}.ModelRef())
}

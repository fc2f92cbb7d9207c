package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/naming"
)

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("endpoint")
	require.NoError(t, err)
	assert.Equal(t, naming.KindEndpoint, kind)

	kind, err = ParseKind("deployment")
	require.NoError(t, err)
	assert.Equal(t, naming.KindDeployment, kind)

	_, err = ParseKind("workspace")
	assert.Error(t, err)
}

func TestGenerateNames(t *testing.T) {
	gen := &naming.Generator{Now: func() time.Time { return fixedNow }}

	names := GenerateNames(gen, naming.KindDeployment, "blue", 32, 5)
	require.Len(t, names, 5)
	for _, name := range names {
		assert.Regexp(t, `^blue-10150930-[0-9a-f]{4}$`, name)
	}

	assert.Empty(t, GenerateNames(gen, naming.KindEndpoint, "churn", 32, 0))
	assert.Empty(t, GenerateNames(nil, naming.KindEndpoint, "churn", 32, -1))
}

func TestValidateNames(t *testing.T) {
	checks, err := ValidateNames(naming.KindEndpoint, []string{"churn-ep", "Bad_Name", "ok-1"})
	require.Error(t, err)
	require.Len(t, checks, 3)

	assert.NoError(t, checks[0].Err)
	assert.Error(t, checks[1].Err)
	assert.NoError(t, checks[2].Err)
	assert.Contains(t, err.Error(), "Bad_Name")

	_, err = ValidateNames(naming.KindDeployment, []string{"blue-10150930-a1b2"})
	assert.NoError(t, err)
}

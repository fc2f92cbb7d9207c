package retry

import (
	"fmt"
	"time"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/naming"
)

// Policy defines how one logical "create this uniquely named resource"
// operation is retried. A Policy is a value and is never modified by Create.
type Policy struct {
	Kind naming.Kind

	// MaxRetries is the maximum number of additional attempts after the first.
	// If MaxRetries is 3, the creation runs at most 4 times.
	MaxRetries int

	// RetryDelay is the fixed wait between a failed attempt and the next one.
	RetryDelay time.Duration

	// RetrySuffix builds the suffix appended to the original name for the
	// given retry ordinal (1-based).
	RetrySuffix func(retry int, now time.Time) string

	// Fallback returns a fresh compliant name when original-suffix does not
	// fit the name grammar.
	Fallback func() string
}

// EndpointPolicy returns the endpoint retry policy: 3 retries, 5 minutes apart,
// names suffixed with "retry{n}-{unix%10000}" or regenerated from "pp-retry".
func EndpointPolicy(gen *naming.Generator) Policy {
	return Policy{
		Kind:       naming.KindEndpoint,
		MaxRetries: 3,
		RetryDelay: 300 * time.Second,
		RetrySuffix: func(retry int, now time.Time) string {
			return fmt.Sprintf("retry%d-%d", retry, now.Unix()%10000)
		},
		Fallback: func() string {
			return gen.EndpointName("pp-retry", naming.MaxNameLength)
		},
	}
}

// DeploymentPolicy returns the deployment retry policy: 2 retries, 3 minutes
// apart, names suffixed with "r{n}-{unix%1000}" or regenerated from "pp-dep-retry".
func DeploymentPolicy(gen *naming.Generator) Policy {
	return Policy{
		Kind:       naming.KindDeployment,
		MaxRetries: 2,
		RetryDelay: 180 * time.Second,
		RetrySuffix: func(retry int, now time.Time) string {
			return fmt.Sprintf("r%d-%d", retry, now.Unix()%1000)
		},
		Fallback: func() string {
			return gen.DeploymentName("pp-dep-retry", naming.MaxNameLength)
		},
	}
}

// NextName returns the name for retry ordinal retry (1-based), derived from the
// name of the first attempt. It never returns a name that fails naming.Validate
// unless the Fallback itself does.
func (p Policy) NextName(original string, retry int, now time.Time) string {
	if p.RetrySuffix != nil {
		candidate := original + "-" + p.RetrySuffix(retry, now)
		if naming.Validate(candidate, p.Kind) == nil {
			return candidate
		}
	}

	if p.Fallback != nil {
		return p.Fallback()
	}

	gen := naming.Generator{Now: func() time.Time { return now }}
	return gen.Name(p.Kind, original, naming.MaxNameLength)
}

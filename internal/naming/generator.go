package naming

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultEndpointBase and DefaultDeploymentBase are used when the
	// configuration does not provide a base name.
	DefaultEndpointBase   = "purchase-predictor"
	DefaultDeploymentBase = "purchase-predictor-deployment"
)

// layout describes how names for one resource kind are assembled.
type layout struct {
	kind Kind
	// timeFormat is a Go reference layout for the timestamp segment.
	timeFormat string
	tokenLen   int
	// shortTokenLen is used together with the abbreviation when the regular
	// layout does not fit.
	shortTokenLen int
	abbreviation  string
	// truncateBase allows shrinking the base before falling back to the abbreviation.
	truncateBase bool
}

var (
	endpointLayout = layout{
		kind:          KindEndpoint,
		timeFormat:    "0102-1504", // MMDD-HHMM
		tokenLen:      6,
		shortTokenLen: 4,
		abbreviation:  "pp",
		truncateBase:  true,
	}

	deploymentLayout = layout{
		kind:          KindDeployment,
		timeFormat:    "01021504", // MMDDHHMM
		tokenLen:      4,
		shortTokenLen: 4,
		abbreviation:  "pp-dep",
		truncateBase:  false,
	}
)

// Generator produces names of the form {base}-{timestamp}-{token} that satisfy
// the naming grammar enforced by Validate.
//
// Uniqueness is probabilistic: two names generated from the same base collide
// only when they share the timestamp bucket (one minute) and the random token.
// The zero value is ready to use and reads the wall clock and crypto randomness.
type Generator struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Entropy feeds the random token. When nil, tokens come from uuid.New().
	// A seeded reader makes generation reproducible for a fixed clock.
	Entropy io.Reader
}

// EndpointName returns a unique endpoint name derived from base, no longer than maxLength.
//
// Example:
//
//	EndpointName("purchase-predictor", 32) // "purchase-predic-1015-0930-3f9a1c"
func (g *Generator) EndpointName(base string, maxLength int) string {
	return g.generate(base, maxLength, endpointLayout)
}

// DeploymentName returns a unique deployment name derived from base, no longer than maxLength.
//
// Example:
//
//	DeploymentName("blue", 32) // "blue-10150930-3f9a"
func (g *Generator) DeploymentName(base string, maxLength int) string {
	return g.generate(base, maxLength, deploymentLayout)
}

// Name dispatches to EndpointName or DeploymentName.
func (g *Generator) Name(kind Kind, base string, maxLength int) string {
	if kind == KindDeployment {
		return g.DeploymentName(base, maxLength)
	}
	return g.EndpointName(base, maxLength)
}

func (g *Generator) generate(base string, maxLength int, l layout) string {
	maxLength = ClampLength(maxLength)
	base = Sanitize(base)

	timestamp := g.now().UTC().Format(l.timeFormat)
	token := g.token()

	// 1. Regular layout
	if base != "" {
		candidate := joinName(base, timestamp, token[:l.tokenLen])
		if len(candidate) <= maxLength {
			return candidate
		}

		// 2. Shrink the base to whatever the fixed segments leave over
		if l.truncateBase {
			available := maxLength - len(timestamp) - l.tokenLen - 2
			if available >= MinNameLength {
				truncated := strings.TrimRight(base[:available], "-")
				return joinName(truncated, timestamp, token[:l.tokenLen])
			}
		}
	}

	// 3. Canonical abbreviation with a shorter token
	candidate := joinName(l.abbreviation, timestamp, token[:l.shortTokenLen])
	if len(candidate) <= maxLength {
		return candidate
	}

	// 4. Budget too small for any timestamp: keep the abbreviation and as much
	// of the token as fits.
	compact := strings.ReplaceAll(l.abbreviation, "-", "") + token
	return compact[:min(maxLength, len(compact))]
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// token returns 8 random lowercase hex characters.
func (g *Generator) token() string {
	id := uuid.New()
	if g.Entropy != nil {
		if seeded, err := uuid.NewRandomFromReader(g.Entropy); err == nil {
			id = seeded
		}
	}
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}

// Sanitize lower-cases base, turns underscores and spaces into hyphens, drops
// every other character outside [a-z0-9-], collapses repeated hyphens and trims
// hyphens from both ends.
func Sanitize(base string) string {
	var b strings.Builder
	b.Grow(len(base))

	lastHyphen := false
	for _, r := range strings.ToLower(base) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		case r == '-' || r == '_' || r == ' ':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.Trim(b.String(), "-")
}

// ClampLength keeps a requested maximum inside the limits Validate accepts.
func ClampLength(maxLength int) int {
	return max(MinNameLength, min(maxLength, MaxNameLength))
}

func joinName(parts ...string) string {
	return strings.Join(parts, "-")
}

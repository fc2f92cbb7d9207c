package workflow

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/naming"
)

// ParseKind accepts "endpoint" or "deployment".
func ParseKind(s string) (naming.Kind, error) {
	switch naming.Kind(s) {
	case naming.KindEndpoint, naming.KindDeployment:
		return naming.Kind(s), nil
	default:
		return "", fmt.Errorf("unknown resource kind %q (want %q or %q)", s, naming.KindEndpoint, naming.KindDeployment)
	}
}

// GenerateNames returns count candidate names for base. Names generated
// within the same minute differ only in their random token.
func GenerateNames(gen *naming.Generator, kind naming.Kind, base string, maxLength, count int) []string {
	if gen == nil {
		gen = &naming.Generator{}
	}

	names := make([]string, 0, max(count, 0))
	for range max(count, 0) {
		names = append(names, gen.Name(kind, base, maxLength))
	}
	return names
}

// NameCheck is the validation result for one name. Err is nil when valid.
type NameCheck struct {
	Name string
	Err  error
}

// ValidateNames checks every name and returns the per-name results plus an
// aggregate of all failures (nil when every name is valid).
func ValidateNames(kind naming.Kind, names []string) ([]NameCheck, error) {
	checks := make([]NameCheck, 0, len(names))
	var errs []error

	for _, name := range names {
		err := naming.Validate(name, kind)
		checks = append(checks, NameCheck{Name: name, Err: err})
		if err != nil {
			errs = append(errs, err)
		}
	}

	return checks, utilerrors.NewAggregate(errs)
}

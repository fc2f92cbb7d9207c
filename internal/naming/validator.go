package naming

import (
	"fmt"
	"strings"
)

// Kind identifies the Azure ML resource a name is meant for.
// It only changes the wording of validation errors and the generator's fallbacks.
type Kind string

const (
	KindEndpoint   Kind = "endpoint"
	KindDeployment Kind = "deployment"
)

const (
	// MinNameLength and MaxNameLength bound every endpoint and deployment name.
	MinNameLength = 3
	MaxNameLength = 32
)

// ValidationError describes the first naming rule a candidate name violates.
type ValidationError struct {
	Kind   Kind
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s name %q: %s", e.Kind, e.Name, e.Reason)
}

// Validate checks a candidate name against the Azure ML naming grammar:
//
//	^[a-z0-9][a-z0-9-]*[a-z0-9]$, 3 to 32 characters, no "--".
//
// Rules are checked in a fixed order and the first failing one is returned
// as a *ValidationError. A nil return means the name can be submitted.
func Validate(name string, kind Kind) error {
	fail := func(format string, args ...any) error {
		return &ValidationError{Kind: kind, Name: name, Reason: fmt.Sprintf(format, args...)}
	}

	if name == "" {
		return fail("%s name cannot be empty", kind)
	}

	if len(name) < MinNameLength {
		return fail("%s name length %d is below the minimum of %d characters", kind, len(name), MinNameLength)
	}

	if len(name) > MaxNameLength {
		return fail("%s name length %d exceeds the maximum of %d characters", kind, len(name), MaxNameLength)
	}

	if !isAlphanumeric(name[0]) || !isAlphanumeric(name[len(name)-1]) {
		return fail("%s name must start and end with an alphanumeric character", kind)
	}

	for i := 0; i < len(name); i++ {
		if !isNameChar(name[i]) {
			return fail("%s name can only contain lowercase letters, numbers, and hyphens (invalid character %q)", kind, name[i])
		}
	}

	if strings.Contains(name, "--") {
		return fail("%s name cannot contain consecutive hyphens", kind)
	}

	return nil
}

// IsValid is the boolean form of Validate.
func IsValid(name string, kind Kind) bool {
	return Validate(name, kind) == nil
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isNameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-'
}

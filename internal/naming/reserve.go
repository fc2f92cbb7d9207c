package naming

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoAvailableName is returned when every generated candidate was rejected.
var ErrNoAvailableName = errors.New("no available name")

// TakenFunc reports whether a name is already in use by an existing resource.
type TakenFunc func(ctx context.Context, name string) (bool, error)

// Reserve generates up to candidates names and returns the first one that
// passes Validate and, when taken is non-nil, is not in use yet.
//
// The check is a pre-flight read, not a lock: a concurrent writer can still
// claim the name between Reserve returning and the create call.
func (g *Generator) Reserve(ctx context.Context, kind Kind, base string, maxLength, candidates int, taken TakenFunc) (string, error) {
	candidates = max(candidates, 1)

	var lastReason error
	for i := 0; i < candidates; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		name := g.Name(kind, base, maxLength)
		if err := Validate(name, kind); err != nil {
			lastReason = err
			continue
		}

		if taken == nil {
			return name, nil
		}

		inUse, err := taken(ctx, name)
		if err != nil {
			return "", fmt.Errorf("checking %s name %q: %w", kind, name, err)
		}
		if !inUse {
			return name, nil
		}
		lastReason = fmt.Errorf("%s name %q is already in use", kind, name)
	}

	return "", fmt.Errorf("%w for %s base %q after %d candidates: %w", ErrNoAvailableName, kind, base, candidates, lastReason)
}

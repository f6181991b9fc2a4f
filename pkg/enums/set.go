package enums

import (
	"fmt"
	"slices"
)

// parseEnum returns the member of allowed spelled exactly like raw.
func parseEnum[T ~string](allowed []T, raw, kind string) (T, error) {
	if i := slices.Index(allowed, T(raw)); i >= 0 {
		return allowed[i], nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}

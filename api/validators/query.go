package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
)

// queryParam reads key from the query string. A blank value yields fallback;
// a value parse rejects becomes a validation error naming the field.
func queryParam[T any](r *http.Request, key string, fallback T, parse func(string) (T, error), want string) (T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := parse(raw)
	if err != nil {
		var zero T
		return zero, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be %s", key, want).
			WithDetails(map[string]any{"field": key})
	}
	return v, nil
}

// ParseQueryInt also enforces min <= value <= max.
func ParseQueryInt(r *http.Request, key string, fallback, min, max int) (int, error) {
	n, err := queryParam(r, key, fallback, strconv.Atoi, "an integer")
	if err != nil {
		return 0, err
	}
	if n < min || n > max {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "%s out of range", key).
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return n, nil
}

func ParseQueryBool(r *http.Request, key string, fallback bool) (bool, error) {
	return queryParam(r, key, fallback, strconv.ParseBool, "a boolean")
}

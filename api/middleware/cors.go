package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/cors"
)

var (
	localOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

	corsMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
	corsRequestHeaders  = []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"}
	corsResponseHeaders = []string{"X-Request-Id", "X-Vertex-Token", "Idempotent-Replayed", "Retry-After"}
)

// CORS falls back to the local dev servers when origins is empty. A "*" entry
// allows any origin without credentials.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = localOrigins
	}
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   corsMethods,
		AllowedHeaders:   corsRequestHeaders,
		ExposedHeaders:   corsResponseHeaders,
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           int((5 * time.Minute).Seconds()),
	}
	return cors.Handler(opts)
}

package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nabd-ai/vertex-backend/api/responses"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
)

// Auth bodies are tiny; anything larger is not worth buffering to find an email.
const maxRateLimitBody = 16 << 10

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// KeyFunc derives the counter subject for a request. An empty result skips
// the rule for that request.
type KeyFunc func(r *http.Request, body []byte) string

// RateLimitRule is one fixed-window counter. Rules with a zero limit or window
// are disabled.
type RateLimitRule struct {
	Name      string
	Limit     int
	Window    time.Duration
	Key       KeyFunc
	NeedsBody bool
}

func (r RateLimitRule) enabled() bool {
	return r.Limit > 0 && r.Window > 0 && r.Key != nil
}

// ByClientIP keys on the originating address.
func ByClientIP(r *http.Request, _ []byte) string {
	return clientIP(r)
}

// ByEmail keys on a hash of the JSON "email" field so raw addresses never
// reach redis or the logs.
func ByEmail(_ *http.Request, body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

// ByUser keys on the authenticated user and skips anonymous requests.
func ByUser(r *http.Request, _ []byte) string {
	return UserIDFromContext(r.Context())
}

// RateLimit checks every enabled rule in order and rejects with 429 on the
// first one exhausted. A nil store disables limiting.
func RateLimit(store rateLimiterStore, logg *logger.Logger, rules ...RateLimitRule) func(http.Handler) http.Handler {
	active := make([]RateLimitRule, 0, len(rules))
	needsBody := false
	for _, rule := range rules {
		if rule.enabled() {
			active = append(active, rule)
			needsBody = needsBody || rule.NeedsBody
		}
	}

	return func(next http.Handler) http.Handler {
		if store == nil || len(active) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var body []byte
			if needsBody && r.Body != nil {
				var err error
				body, err = io.ReadAll(io.LimitReader(r.Body, maxRateLimitBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
			}

			for _, rule := range active {
				subject := rule.Key(r, body)
				if subject == "" {
					continue
				}
				allowed, count, err := store.FixedWindowAllow(ctx, rule.Name+":"+subject, int64(rule.Limit), rule.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					rejectRateLimited(ctx, logg, w, rule, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, rule RateLimitRule, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"rule":           rule.Name,
			"attempts":       count,
			"limit":          rule.Limit,
			"window_seconds": int(rule.Window.Seconds()),
		}), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(rule.Window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

// clientIP prefers the first well-formed X-Forwarded-For hop, then
// X-Real-IP, then the socket address.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

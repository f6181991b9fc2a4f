package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nabd-ai/vertex-backend/api/controllers"
	"github.com/nabd-ai/vertex-backend/api/middleware"
	"github.com/nabd-ai/vertex-backend/internal/assignments"
	"github.com/nabd-ai/vertex-backend/internal/auth"
	"github.com/nabd-ai/vertex-backend/internal/catalog"
	"github.com/nabd-ai/vertex-backend/internal/dashboard"
	"github.com/nabd-ai/vertex-backend/internal/invoices"
	"github.com/nabd-ai/vertex-backend/internal/ledger"
	"github.com/nabd-ai/vertex-backend/internal/messages"
	"github.com/nabd-ai/vertex-backend/internal/notifications"
	"github.com/nabd-ai/vertex-backend/internal/pairing"
	"github.com/nabd-ai/vertex-backend/internal/requests"
	"github.com/nabd-ai/vertex-backend/internal/specialists"
	"github.com/nabd-ai/vertex-backend/internal/telegram"
	"github.com/nabd-ai/vertex-backend/internal/users"
	"github.com/nabd-ai/vertex-backend/pkg/auth/session"
	"github.com/nabd-ai/vertex-backend/pkg/config"
	"github.com/nabd-ai/vertex-backend/pkg/db"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
	"github.com/nabd-ai/vertex-backend/pkg/metrics"
	"github.com/nabd-ai/vertex-backend/pkg/outbox"
	"github.com/nabd-ai/vertex-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Revoke(context.Context, string) error
}

// redisStore backs idempotency, rate limiting and the readiness probe.
type redisStore interface {
	redis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// Params carries everything the HTTP surface needs. Telegram is nil when the
// bot is disabled, in which case the webhook route is not mounted.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    redisStore
	Sessions sessionManager
	Gatherer prometheus.Gatherer
	HTTP     *metrics.HTTPMetrics

	Auth          auth.Service
	Register      auth.RegisterService
	Users         *users.Repository
	Specialists   specialists.Repository
	Profiles      *specialists.Service
	Catalog       *catalog.Service
	Requests      *requests.Service
	Assignments   *assignments.Service
	Messages      *messages.Service
	Ledger        ledger.Service
	Invoices      *invoices.Service
	Pairing       *pairing.Service
	Dashboard     *dashboard.Service
	Notifications notifications.Service
	Telegram      *telegram.Dispatcher
	DeadLetters   *outbox.DeadLetters
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg, p.HTTP),
		middleware.Recoverer(logg, p.HTTP),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	rl := cfg.AuthRateLimit
	loginLimit := middleware.RateLimit(p.Redis, logg,
		middleware.RateLimitRule{Name: "login:ip", Limit: rl.LoginIPLimit, Window: rl.LoginWindow, Key: middleware.ByClientIP},
		middleware.RateLimitRule{Name: "login:email", Limit: rl.LoginEmailLimit, Window: rl.LoginWindow, Key: middleware.ByEmail, NeedsBody: true},
	)
	registerLimit := middleware.RateLimit(p.Redis, logg,
		middleware.RateLimitRule{Name: "register:ip", Limit: rl.RegisterIPLimit, Window: rl.RegisterWindow, Key: middleware.ByClientIP},
		middleware.RateLimitRule{Name: "register:email", Limit: rl.RegisterEmailLimit, Window: rl.RegisterWindow, Key: middleware.ByEmail, NeedsBody: true},
	)
	userLimit := middleware.RateLimit(p.Redis, logg,
		middleware.RateLimitRule{Name: "api:user", Limit: rl.APIUserLimit, Window: rl.APIWindow, Key: middleware.ByUser},
	)

	deps := map[string]controllers.Pinger{}
	if p.DB != nil {
		deps["db"] = p.DB
	}
	if p.Redis != nil {
		deps["redis"] = p.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps, logg))
	})
	r.Handle("/metrics", metrics.Handler(p.Gatherer))

	if p.Telegram != nil {
		r.Post("/api/telegram/webhook", controllers.TelegramWebhook(p.Telegram, cfg.Telegram.WebhookSecret, logg))
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.With(loginLimit).Post("/login", controllers.AuthLogin(p.Auth, logg))
		r.With(
			registerLimit,
			middleware.Idempotency(p.Redis, logg),
		).Post("/register", controllers.AuthRegister(p.Register, p.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(p.Sessions, cfg.JWT, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
		r.Use(userLimit)
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Get("/me", controllers.Me(p.Users, p.Ledger, p.Specialists, logg))
		r.Get("/tasks", controllers.TaskList(p.Catalog, logg))
		r.Get("/tasks/{name}", controllers.TaskDetail(p.Catalog, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletDetail(p.Ledger, logg))
			r.Get("/transactions", controllers.WalletTransactions(p.Ledger, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", controllers.InvoiceCreate(p.Invoices, logg))
			r.Get("/", controllers.InvoiceList(p.Invoices, logg))
			r.Get("/{invoiceId}", controllers.InvoiceDetail(p.Invoices, logg))
		})

		// visibility is decided per assignment, so any authenticated role may call these
		r.Route("/assignments/{assignmentId}", func(r chi.Router) {
			r.Get("/", controllers.AssignmentDetail(p.Assignments, logg))
			r.Post("/rate", controllers.AssignmentRate(p.Assignments, logg))
			r.Get("/messages", controllers.MessageList(p.Messages, logg))
			r.Post("/messages", controllers.MessageSend(p.Messages, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleBuyer, enums.UserRoleAdmin))
			r.Route("/requests", func(r chi.Router) {
				r.Post("/", controllers.RequestCreate(p.Requests, logg))
				r.Get("/", controllers.RequestList(p.Requests, logg))
				r.Get("/{requestId}", controllers.RequestDetail(p.Requests, logg))
				r.Post("/{requestId}/cancel", controllers.RequestCancel(p.Requests, logg))
			})
			r.Get("/dashboard", controllers.BuyerDashboard(p.Dashboard, logg))
			r.Get("/dashboard/tasks", controllers.BuyerDashboardTasks(p.Dashboard, logg))
		})

		r.Route("/executor", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleSpecialist))
			r.Get("/dashboard", controllers.ExecutorDashboard(p.Dashboard, logg))
			r.Get("/profile", controllers.ExecutorProfile(p.Profiles, logg))
			r.Put("/profile", controllers.ExecutorProfileUpdate(p.Profiles, logg))
			r.Put("/profile/tasks", controllers.ExecutorTasksSet(p.Profiles, logg))
			r.Route("/assignments/{assignmentId}", func(r chi.Router) {
				r.Post("/accept", controllers.AssignmentAccept(p.Assignments, logg))
				r.Post("/start", controllers.AssignmentStart(p.Assignments, logg))
				r.Post("/complete", controllers.AssignmentComplete(p.Assignments, logg))
			})
			r.Post("/telegram/pairing-token", controllers.TelegramPairingToken(p.Pairing, logg))
			r.Delete("/telegram/link", controllers.TelegramUnlink(p.Pairing, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Post("/requests/{requestId}/offers", controllers.AdminOfferCreate(p.Assignments, logg))
			r.Get("/assignments", controllers.AdminAssignments(p.Assignments, logg))
			r.Post("/assignments/{assignmentId}/cancel", controllers.AssignmentCancel(p.Assignments, logg))
			r.Get("/wallets/{walletId}/verify", controllers.AdminWalletVerify(p.Ledger, logg))
			r.Post("/invoices/{invoiceId}/paid", controllers.AdminInvoicePaid(p.Invoices, logg))
			r.Post("/invoices/{invoiceId}/failed", controllers.AdminInvoiceFailed(p.Invoices, logg))
			if p.DeadLetters != nil {
				r.Get("/outbox/dead-letters", controllers.AdminDeadLetters(p.DeadLetters, logg))
				r.Post("/outbox/dead-letters/{eventId}/requeue", controllers.AdminDeadLetterRequeue(p.DeadLetters, logg))
			}
		})
	})

	return r
}

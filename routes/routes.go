package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // псевдоним, чтобы не путать с нашим middleware
	"github.com/go-chi/cors"
	_ "github.com/orbisplace/orbis-api/docs"
	"github.com/orbisplace/orbis-api/handlers"
	"github.com/orbisplace/orbis-api/metrics"
	"github.com/orbisplace/orbis-api/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Лимиты для публичных POST-маршрутов аутентификации.
const (
	authWindow        = time.Minute
	registerLimit     = 5
	loginLimit        = 10
	passwordMailLimit = 3
	resetLimit        = 5
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Team      *handlers.TeamHandler
	Server    *handlers.ServerHandler
	Taxonomy  *handlers.TaxonomyHandler
	User      *handlers.UserHandler
	Report    *handlers.ReportHandler
	WebSocket *handlers.WebSocketHandler
	Health    *handlers.HealthHandler
}

type Options struct {
	Authenticator *middleware.Authenticator
	RateLimiter   middleware.RateLimiter
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	CORSOrigins   []string
	Logger        *slog.Logger
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(chiMiddleware.Recoverer)
	if opts.Metrics != nil {
		router.Use(middleware.Metrics(opts.Metrics))
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	auth := opts.Authenticator
	limit := func(route string, n int) func(http.Handler) http.Handler {
		var recorder middleware.RateLimitRecorder
		if opts.Metrics != nil {
			recorder = opts.Metrics
		}
		return middleware.RateLimit(opts.RateLimiter, route, n, authWindow, recorder)
	}

	router.Get("/healthz", h.Health.Health)
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(limit("auth.register", registerLimit)).Post("/register", h.Auth.Register)
			r.With(limit("auth.login", loginLimit)).Post("/login", h.Auth.Login)
			r.With(limit("auth.forgot_password", passwordMailLimit)).Post("/forgot-password", h.Auth.ForgotPassword)
			r.With(limit("auth.reset_password", resetLimit)).Post("/reset-password", h.Auth.ResetPassword)
			r.Get("/verify-email", h.Auth.VerifyEmail)
		})

		r.Route("/teams", func(r chi.Router) {
			r.Get("/", h.Team.ListTeams)
			r.Get("/{team}", h.Team.GetTeamByName)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)

				r.Post("/", h.Team.CreateTeam)
				r.Patch("/{team}", h.Team.UpdateTeam)
				r.Delete("/{team}", h.Team.DeleteTeam)

				r.Post("/{team}/logo", h.Team.UploadLogo)
				r.Delete("/{team}/logo", h.Team.DeleteLogo)
				r.Post("/{team}/banner", h.Team.UploadBanner)
				r.Delete("/{team}/banner", h.Team.DeleteBanner)

				r.Post("/{team}/members", h.Team.AddMember)
				r.Patch("/{team}/members/{memberID}", h.Team.UpdateMember)
				r.Delete("/{team}/members/{memberID}", h.Team.RemoveMember)
				r.Post("/{team}/leave", h.Team.LeaveTeam)
				r.Post("/{team}/transfer", h.Team.TransferOwnership)
			})
		})

		r.Route("/servers", func(r chi.Router) {
			r.Get("/", h.Server.ListServers)
			// Владелец и модераторы видят заявки, ещё не прошедшие модерацию.
			r.With(auth.OptionalAuth).Get("/{server}", h.Server.GetServerBySlug)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)
				r.Post("/", h.Server.CreateServer)
				r.Delete("/{server}", h.Server.DeleteServer)
			})
		})

		r.Get("/server-categories", h.Taxonomy.ListCategories)
		r.Get("/server-categories/{slug}", h.Taxonomy.GetCategory)
		r.Get("/server-tags", h.Taxonomy.ListTags)
		r.Get("/server-tags/popular", h.Taxonomy.PopularTags)
		r.Get("/server-tags/{slug}", h.Taxonomy.GetTag)

		r.Route("/users", func(r chi.Router) {
			r.Get("/{userID}", h.User.GetProfile)
			r.Get("/{userID}/followers", h.User.Followers)
			r.Get("/{userID}/following", h.User.Following)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)

				r.Get("/me", h.User.GetMe)
				r.Patch("/me", h.User.UpdateMe)
				r.Post("/me/image", h.User.UploadImage)
				r.Delete("/me/image", h.User.DeleteImage)
				r.Get("/me/servers", h.Server.ListMyServers)
				r.Get("/me/teams", h.Team.ListMyTeams)

				r.Post("/{userID}/follow", h.User.Follow)
				r.Delete("/{userID}/follow", h.User.Unfollow)
			})
		})

		r.With(auth.Authenticate).Post("/reports", h.Report.CreateReport)

		// Роль модератора проверяется в сервисах по актуальным данным пользователя.
		r.Route("/moderation", func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Get("/servers", h.Server.ListPending)
			r.Post("/servers/{serverID}/approve", h.Server.Approve)
			r.Post("/servers/{serverID}/reject", h.Server.Reject)

			r.Get("/reports", h.Report.ListReports)
			r.Patch("/reports/{reportID}", h.Report.ModerateReport)
		})
	})

	router.With(auth.OptionalAuth).Get("/ws/teams/{teamID}", h.WebSocket.ServeTeamEvents)
}

package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ups-sales/api/internal/config"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/enum"
	"github.com/ups-sales/api/internal/handler"
	mw "github.com/ups-sales/api/internal/middleware"
	"github.com/ups-sales/api/internal/project"
	"github.com/ups-sales/api/internal/service"
	"github.com/ups-sales/api/internal/ws"
	"go.uber.org/zap"
)

// Deps are the long-lived dependencies shared by all handlers.
type Deps struct {
	Config  *config.Config
	Pool    *pgxpool.Pool
	Hub     *ws.Hub
	Poller  handler.BankPoller
	Limiter *mw.RateLimiter
	Logger  *zap.Logger

	// Covers is nil when object storage is not configured.
	Covers handler.CoverUploader
}

// New creates a Chi router with all application routes wired up.
// Applies authentication, role, and rate limit middleware as needed.
func New(d Deps) chi.Router {
	cfg := d.Config
	logger := d.Logger
	queries := database.New(d.Pool)

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public, rate limited per client IP)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, logger)
	r.Group(func(r chi.Router) {
		r.Use(d.Limiter.Limit)
		authHandler.RegisterRoutes(r)
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/channels/{name}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, cfg.JWTSecret, logger, w, r)
	})

	orderService := service.NewOrderService(
		d.Pool,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		service.StockMoveTrigger{},
		logger.Named("orders"),
	)
	invoiceService := service.NewInvoiceService(
		d.Pool,
		func(db database.DBTX) service.InvoiceStore { return database.New(db) },
		service.DefaultInvoicer{},
		logger.Named("invoices"),
	)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Owner-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleOwner))

			userHandler := handler.NewUserHandler(queries, logger)
			r.Route("/users", userHandler.RegisterRoutes)
		})

		// Catalog
		categoryHandler := handler.NewCategoryHandler(queries, logger)
		r.Route("/categories", categoryHandler.RegisterRoutes)
		r.Route("/taxes", categoryHandler.RegisterTaxRoutes)

		productHandler := handler.NewProductHandler(queries, logger)
		comboHandler := handler.NewComboHandler(queries, logger)
		r.Route("/products", func(r chi.Router) {
			productHandler.RegisterRoutes(r)
			r.Route("/{pid}", comboHandler.RegisterRoutes)
		})

		// Orders and invoices
		orderHandler := handler.NewOrderHandler(orderService, queries, d.Hub, logger)
		invoiceHandler := handler.NewInvoiceHandler(invoiceService, d.Hub, logger)
		r.Route("/orders", func(r chi.Router) {
			orderHandler.RegisterRoutes(r)
			invoiceHandler.RegisterOrderRoutes(r)
		})
		r.Route("/invoices", invoiceHandler.RegisterRoutes)

		// Bank notifications
		bankHandler := handler.NewBankNotificationHandler(queries, d.Poller, logger)
		r.Route("/bank-notifications", func(r chi.Router) {
			bankHandler.RegisterRoutes(r)
			r.With(mw.RequireRole(enum.UserRoleOwner), d.Limiter.Limit).Post("/poll", bankHandler.Poll)
		})

		// Announcement board
		announcementHandler := handler.NewAnnouncementHandler(queries, d.Covers, logger)
		r.Route("/announcements", announcementHandler.RegisterRoutes)
		r.Route("/tags", announcementHandler.RegisterTagRoutes)

		// Project Gantt
		projectHandler := handler.NewProjectHandler(project.NewService(queries), logger)
		projectHandler.RegisterRoutes(r)
	})

	logger.Info("router initialized")
	return r
}

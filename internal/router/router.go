package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lavanderia-pos/api/internal/audit"
	"github.com/lavanderia-pos/api/internal/config"
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/lavanderia-pos/api/internal/enum"
	"github.com/lavanderia-pos/api/internal/handler"
	mw "github.com/lavanderia-pos/api/internal/middleware"
	"github.com/lavanderia-pos/api/internal/service"
	"github.com/lavanderia-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	alerter := audit.NewAlerter(queries)
	r.Use(mw.AlertOnServerError(alerter))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // SvelteKit dev server
			"https://pos.lavanderia-eureka.mx",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := pool.Ping(r.Context()); err != nil {
			log.Printf("ERROR: health check database ping failed: %v", err)
			alerter.RaiseBestEffort(r.Context(), "database.unavailable", "health", enum.AlertSeverityCritical,
				"database ping failed", map[string]interface{}{"error": err.Error()})
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded","database":"unreachable"}`))
			return
		}
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket routes (handle auth internally via query param)
	r.Get("/ws/production", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, "production", w, r)
	})
	r.Get("/ws/alerts", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, "alerts", w, r)
	})

	// Services with transactional stores
	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	paymentService := service.NewPaymentService(pool, func(db database.DBTX) service.PaymentStore {
		return database.New(db)
	})
	cashService := service.NewCashSessionService(pool, func(db database.DBTX) service.CashStore {
		return database.New(db)
	}, alerter, cfg.CashDiffAlertThreshold)
	catalogService := service.NewCatalogService(pool, func(db database.DBTX) service.CatalogStore {
		return database.New(db)
	})
	stockService := service.NewStockService(pool, func(db database.DBTX) service.StockStore {
		return database.New(db)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Orders and payments
		orderHandler := handler.NewOrderHandler(orderService, queries, hub)
		r.Route("/orders", orderHandler.RegisterRoutes)

		paymentHandler := handler.NewPaymentHandler(paymentService, hub)
		r.Route("/payments", paymentHandler.RegisterRoutes)

		// Cash sessions
		cashHandler := handler.NewCashSessionHandler(cashService, queries)
		r.Route("/cash-sessions", cashHandler.RegisterRoutes)

		// Customers
		customerHandler := handler.NewCustomerHandler(queries)
		r.Route("/customers", customerHandler.RegisterRoutes)

		// Service catalog
		serviceHandler := handler.NewServiceHandler(catalogService, queries)
		r.Route("/services", serviceHandler.RegisterRoutes)

		// Supplies and stock movements
		supplyHandler := handler.NewSupplyHandler(stockService, queries)
		r.Route("/supplies", supplyHandler.RegisterRoutes)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole("ADMIN", "MANAGER"))

			userHandler := handler.NewUserHandler(queries)
			r.Route("/users", userHandler.RegisterRoutes)

			alertHandler := handler.NewAlertHandler(queries)
			r.Route("/alerts", alertHandler.RegisterRoutes)

			reportsHandler := handler.NewReportsHandler(queries)
			r.Route("/reports", reportsHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}

package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/outlet-pos/api/internal/config"
	"github.com/outlet-pos/api/internal/database"
	"github.com/outlet-pos/api/internal/enum"
	"github.com/outlet-pos/api/internal/handler"
	mw "github.com/outlet-pos/api/internal/middleware"
	"github.com/outlet-pos/api/internal/payment"
	"github.com/outlet-pos/api/internal/service"
	"github.com/outlet-pos/api/internal/ws"
)

// Deps are the long-lived collaborators the routes are built on.
type Deps struct {
	Queries  *database.Queries
	Pool     *pgxpool.Pool
	Hub      *ws.Hub
	Notifier service.Notifier
	// Folio is nil when the outlet has no billing system.
	Folio   service.FolioPoster
	Change  *payment.ChangeMaker
	Limiter *mw.OutletRateLimiter
}

// Options derives the engine settings from cfg.
func Options(cfg *config.Config) service.Options {
	return service.Options{
		Currency:          cfg.Currency,
		ServiceChargeRate: cfg.ServiceChargeRate,
		TaxRate:           cfg.TaxRate,
		StoreTimeout:      cfg.StoreTimeout,
	}
}

// New creates a Chi router with all application routes wired up.
// Applies authentication, outlet scoping, rate limiting and role checks.
func New(cfg *config.Config, d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	handler.NewAuthHandler(d.Queries, cfg.JWTSecret).RegisterRoutes(r)

	// Kitchen displays authenticate with ?token= since browsers cannot set
	// headers on a WebSocket upgrade.
	r.Get("/ws/outlets/{oid}/kitchen", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, cfg.JWTSecret, w, r)
	})

	opts := Options(cfg)
	orders := service.NewOrderManager(d.Pool, d.Queries, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, opts, d.Notifier)
	kitchen := service.NewKitchenBridge(d.Pool, d.Queries, func(db database.DBTX) service.KitchenStore {
		return database.New(db)
	}, opts, d.Notifier)
	settlements := service.NewSettlementService(d.Pool, d.Queries, func(db database.DBTX) service.SettlementStore {
		return database.New(db)
	}, opts, d.Change, d.Folio, d.Notifier)
	tables := service.NewTableService(d.Pool, d.Queries, func(db database.DBTX) service.TableStore {
		return database.New(db)
	}, opts)

	orderHandler := handler.NewOrderHandler(handler.NewSessionFactory(orders, kitchen), cfg.Currency)
	settlementHandler := handler.NewSettlementHandler(settlements, cfg.Currency)
	paymentHandler := handler.NewPaymentHandler(d.Change)
	kitchenHandler := handler.NewKitchenHandler(kitchen, cfg.Currency)
	tableHandler := handler.NewTableHandler(tables)

	front := mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager, enum.UserRoleCashier, enum.UserRoleWaiter)
	till := mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager, enum.UserRoleCashier)
	managers := mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager)

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/outlets/{oid}", func(r chi.Router) {
			r.Use(mw.RequireOutlet)
			if d.Limiter != nil {
				r.Use(d.Limiter.Middleware)
			}

			r.Route("/orders", func(r chi.Router) {
				orderHandler.RegisterRoutes(r.With(front))
				settlementHandler.RegisterRoutes(r.With(till))
			})

			r.With(till).Route("/payments", paymentHandler.RegisterRoutes)

			r.Route("/kitchen", kitchenHandler.RegisterRoutes)

			r.Route("/tables", func(r chi.Router) {
				r.With(front).Get("/", tableHandler.List)
				r.With(front).Get("/recommend", tableHandler.Recommend)
				r.With(managers).Post("/merge", tableHandler.Merge)
				r.With(managers).Post("/{tid}/split", tableHandler.Split)
				r.With(front).Patch("/{tid}", tableHandler.SetStatus)
				r.With(managers).Post("/auto-assign", tableHandler.AutoAssign)
			})
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}

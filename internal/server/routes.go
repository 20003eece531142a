package server

import (
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voltline/j1939-console/internal/accounts"
	"github.com/voltline/j1939-console/internal/audit"
	"github.com/voltline/j1939-console/internal/config"
	"github.com/voltline/j1939-console/internal/console"
	"github.com/voltline/j1939-console/internal/db"
	"github.com/voltline/j1939-console/internal/metrics"
	"github.com/voltline/j1939-console/internal/navigation"
	"github.com/voltline/j1939-console/internal/products"
	"github.com/voltline/j1939-console/internal/reference"
	"github.com/voltline/j1939-console/internal/vehicles"
)

// Services are the feature handlers and stores mounted by the server.
type Services struct {
	Guard      *accounts.Guard
	Accounts   *accounts.Service
	Audit      *audit.Store
	Navigation *navigation.Handler
	Vehicles   *vehicles.Store
	Reference  *reference.Store
	Products   *products.Store
	Console    *console.Handler
}

// Mount registers every feature route. REST calls get a request timeout;
// the websocket and page routes do not.
func (s *Server) Mount(svc Services) {
	r := s.router

	svc.Navigation.RegisterRoutes(r)
	svc.Console.RegisterRoutes(r, svc.Guard)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		accounts.RegisterRoutes(r, svc.Accounts, svc.Guard, svc.Audit)
		vehicles.RegisterRoutes(r, svc.Vehicles, svc.Guard, svc.Audit, s.metrics)
		reference.RegisterRoutes(r, svc.Reference, svc.Guard, svc.Audit)
		products.RegisterRoutes(r, svc.Products, svc.Guard, svc.Audit)

		r.Group(func(r chi.Router) {
			r.Use(svc.Guard.Require(accounts.RoleAdmin))
			audit.RegisterRoutes(r, svc.Audit)
		})
	})
}

// NewServices builds every feature from cfg over one database. A nil
// sender posts signup codes to auth.code_webhook, or logs them when unset.
func NewServices(cfg *config.Config, database *db.DB, m *metrics.Metrics, sender accounts.Sender) (Services, error) {
	tree, err := navigation.LoadTree(cfg.Navigation.File)
	if err != nil {
		return Services{}, fmt.Errorf("loading navigation tree: %w", err)
	}
	accountStore := accounts.NewStore(database)
	guard := accounts.NewGuard(accountStore)
	if cfg.Auth.Disabled {
		guard = accounts.NoAuth()
	}

	if sender == nil && cfg.Auth.CodeWebhook != "" {
		sender = accounts.NewWebhookSender(cfg.Auth.CodeWebhook)
	}

	svc := Services{
		Guard:      guard,
		Accounts:   accounts.NewService(accountStore, sender, cfg.Auth, m),
		Audit:      audit.NewStore(database),
		Navigation: navigation.NewHandler(tree, m, cfg.Navigation.DefaultLang),
		Vehicles:   vehicles.NewStore(database),
		Reference:  reference.NewStore(database),
		Products:   products.NewStore(database),
	}
	svc.Console, err = console.New(svc.Navigation, svc.Vehicles, svc.Reference, svc.Products, m)
	if err != nil {
		return Services{}, err
	}
	return svc, nil
}

package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tindahan/marketplace-backend/api/controllers"
	ordercontrollers "github.com/tindahan/marketplace-backend/api/controllers/orders"
	"github.com/tindahan/marketplace-backend/api/middleware"
	checkoutsvc "github.com/tindahan/marketplace-backend/internal/checkout"
	"github.com/tindahan/marketplace-backend/internal/orders"
	"github.com/tindahan/marketplace-backend/pkg/config"
	"github.com/tindahan/marketplace-backend/pkg/enums"
	"github.com/tindahan/marketplace-backend/pkg/logger"
	pkgredis "github.com/tindahan/marketplace-backend/pkg/redis"
)

// Deps collects what the HTTP surface needs. Nil pingers are skipped by the readiness probe.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	Checkout    checkoutsvc.Service
	Orders      orders.Service
	Gatherer    prometheus.Gatherer
	Now         func() time.Time
}

func NewRouter(deps Deps) http.Handler {
	logg := deps.Logger
	env := ""
	var origins []string
	if deps.Config != nil {
		env = deps.Config.App.Env
		origins = deps.Config.App.CORSOrigins
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(origins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(env))
		r.Get("/ready", controllers.HealthReady(env, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}, logg))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity(logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.Checkout(deps.Checkout, logg))
			r.Get("/seller/{sellerId}", ordercontrollers.ListSeller(deps.Orders, logg))
			r.Get("/seller/{sellerId}/revenue", ordercontrollers.SellerRevenue(deps.Orders, deps.Now, logg))
			r.Get("/{id}", ordercontrollers.ListBuyer(deps.Orders, logg))
			r.Get("/{id}/details", ordercontrollers.Detail(deps.Orders, logg))
			r.Post("/{id}/status", ordercontrollers.UpdateStatus(deps.Orders, logg))
			r.Post("/{id}/payment-status", ordercontrollers.UpdatePaymentStatus(deps.Orders, logg))
			r.Post("/{id}/receipt", ordercontrollers.UploadReceipt(deps.Orders, logg))
		})

		r.Route("/admin/orders", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.ActorRoleAdmin, logg))
			r.Get("/{id}/history", ordercontrollers.History(deps.Orders, logg))
			r.Post("/{id}/force-status", ordercontrollers.ForceStatus(deps.Orders, logg))
			r.Post("/{id}/force-payment-status", ordercontrollers.ForcePaymentStatus(deps.Orders, logg))
		})
	})

	return r
}

// Package httpserver wires the chi router: middleware stack, auth gates
// and the versioned API surface.
package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"athens/internal/attendance"
	"athens/internal/auth"
	"athens/internal/cache"
	"athens/internal/httpserver/handlers"
	"athens/internal/models"
	"athens/internal/notify"
	"athens/internal/offline"
	"athens/internal/ptw"
	"athens/internal/reporting"
)

// Deps carries everything the route tree needs.
type Deps struct {
	DB       *gorm.DB
	Log      *zap.SugaredLogger
	Engine   *ptw.Engine
	Reporter *reporting.Reporter
	Syncer   *offline.Syncer
	Ingester *attendance.Ingester
	Cache    *cache.Cache
	Hub      *notify.Hub
}

// New builds the router.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/login", handlers.Login(d.DB, d.Log))
		r.Group(func(r chi.Router) {
			r.Use(auth.JWTAuth(d.DB))
			r.Post("/logout", handlers.Logout(d.DB, d.Log))
			r.Get("/me", handlers.Me(d.DB, d.Log))
			r.Post("/change-password", handlers.ChangePassword(d.DB, d.Log))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.JWTAuth(d.DB))

		r.Get("/ws", d.Hub.ServeWS)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", handlers.ListUsers(d.DB, d.Log))
			r.Get("/{id}", handlers.GetUser(d.DB, d.Log))
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireUserType(models.UserTypeMaster, models.UserTypeProjectAdmin))
				r.Post("/", handlers.CreateUser(d.DB, d.Log))
				r.Patch("/{id}", handlers.UpdateUser(d.DB, d.Log))
			})
		})

		r.Route("/ptw", func(r chi.Router) {
			r.Route("/permits", func(r chi.Router) {
				r.Get("/", handlers.ListPermits(d.Engine, d.Log))
				r.Post("/", handlers.CreatePermit(d.Engine, d.Log))

				// Static segments win over {id} in the chi trie.
				r.Get("/kpis", handlers.GetKPIs(d.Reporter, d.Cache, d.Log))
				r.Get("/reports_summary", handlers.GetReportSummary(d.Reporter, d.Log))
				r.Get("/reports_exceptions", handlers.GetReportExceptions(d.Reporter, d.Log))

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", handlers.GetPermit(d.Engine, d.Log))
					r.Patch("/", handlers.UpdatePermit(d.Engine, d.Log))
					r.Delete("/", handlers.CancelPermit(d.Engine, d.Log))

					r.Post("/submit", handlers.SubmitPermit(d.Engine, d.Log))
					r.Post("/assign-verifier", handlers.AssignVerifier(d.Engine, d.Log))
					r.Post("/assign-approver", handlers.AssignApprover(d.Engine, d.Log))
					r.Post("/verify", handlers.VerifyPermit(d.Engine, d.Log))
					r.Post("/approve", handlers.ApprovePermit(d.Engine, d.Log))
					r.Post("/activate", handlers.ActivatePermit(d.Engine, d.Log))
					r.Post("/suspend", handlers.SuspendPermit(d.Engine, d.Log))
					r.Post("/resume", handlers.ResumePermit(d.Engine, d.Log))
					r.Post("/complete", handlers.CompletePermit(d.Engine, d.Log))

					r.Post("/signatures", handlers.AddSignature(d.Engine, d.Log))
					r.Get("/readiness", handlers.GetReadiness(d.Engine, d.Log))
					r.Get("/audit", handlers.PermitAuditTrail(d.Engine, d.Log))

					r.Get("/isolation-points", handlers.ListPermitIsolationPoints(d.Engine, d.Log))
					r.Post("/isolation-points", handlers.AssignIsolationPoint(d.Engine, d.Log))
					r.Post("/isolation", handlers.UpdateIsolation(d.Engine, d.Log))

					r.Get("/gas-readings", handlers.ListGasReadings(d.Engine, d.Log))
					r.Post("/gas-readings", handlers.AddGasReading(d.Engine, d.Log))

					r.Get("/closeout", handlers.GetCloseout(d.Engine, d.Log))
					r.Put("/closeout", handlers.UpdateCloseout(d.Engine, d.Log))

					r.Get("/extensions", handlers.ListExtensions(d.Engine, d.Log))
					r.Post("/extensions", handlers.RequestExtension(d.Engine, d.Log))

					r.Get("/qr", handlers.IssueQR(d.Engine, d.Cache, d.Log))
				})
			})

			r.Post("/extensions/{extID}/decision", handlers.DecideExtension(d.Engine, d.Log))
			r.Get("/qr-scan/{code}", handlers.ScanQR(d.Engine, d.Log))

			r.Get("/permit-types", handlers.ListPermitTypes(d.Engine, d.Log))
			r.With(auth.RequireUserType(models.UserTypeMaster)).
				Post("/permit-types", handlers.CreatePermitType(d.Engine, d.Log))

			r.Get("/isolation-library", handlers.ListIsolationLibrary(d.Engine, d.Log))
			r.Post("/isolation-library", handlers.CreateIsolationLibraryPoint(d.Engine, d.Log))

			r.Get("/closeout-templates", handlers.ListCloseoutTemplates(d.Engine, d.Log))
			r.With(auth.RequireUserType(models.UserTypeMaster)).
				Post("/closeout-templates", handlers.CreateCloseoutTemplate(d.Engine, d.Log))

			r.Post("/sync-offline-data", handlers.SyncOfflineData(d.Syncer, d.Log))

			r.Route("/webhooks", func(r chi.Router) {
				r.Use(auth.RequireUserType(models.UserTypeMaster, models.UserTypeProjectAdmin))
				r.Get("/", handlers.ListWebhooks(d.DB, d.Log))
				r.Post("/", handlers.CreateWebhook(d.DB, d.Log))
				r.Patch("/{id}", handlers.UpdateWebhook(d.DB, d.Log))
				r.Delete("/{id}", handlers.DeleteWebhook(d.DB, d.Log))
				r.Get("/{id}/deliveries", handlers.ListWebhookDeliveries(d.DB, d.Log))
			})
		})

		r.Post("/attendance/events/bulk", handlers.BulkAttendance(d.Ingester, d.Log))

		r.Route("/escalation-rules", func(r chi.Router) {
			r.Get("/", handlers.ListEscalationRules(d.DB, d.Log))
			r.With(auth.RequireUserType(models.UserTypeMaster)).
				Post("/", handlers.CreateEscalationRule(d.DB, d.Log))
		})
		r.Get("/scheduler/status", handlers.SchedulerStatus(d.DB, d.Log))
	})

	return r
}

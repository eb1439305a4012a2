package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"citbif/internal/auth"
	"citbif/internal/httpserver/handlers"
	"citbif/internal/models"
)

func NewRouter(d *handlers.Deps, authn *auth.Authenticator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, requestLogger(d.Log), securityHeaders)
	r.Use(d.Metrics.Instrument)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", handlers.Signup(d))
		r.Post("/login", handlers.Login(d))
		r.Post("/refresh", handlers.Refresh(d))
		r.With(authn.Optional).Get("/whoami", handlers.Whoami(d))

		r.Group(func(protected chi.Router) {
			protected.Use(authn.JWTAuth)
			protected.Get("/me", handlers.Me(d))
			protected.Post("/logout", handlers.Logout(d))
			protected.Post("/logout-all", handlers.LogoutAll(d))
			protected.Post("/change-password", handlers.ChangePassword(d))
			protected.Get("/activity", handlers.MyActivity(d))
		})
	})

	r.Route("/api/admin", func(admin chi.Router) {
		admin.Use(authn.JWTAuth, authn.Authorize(models.RoleAdmin), authn.RequireAdmin())
		admin.Get("/me/activity", handlers.AdminMyActivity(d))
		admin.With(authn.RequireAdmin(models.PermViewReports)).Get("/activity", handlers.ListActivity(d))
		admin.With(authn.RequireAdmin(models.PermManageUsers)).Delete("/accounts/{id}/sessions", handlers.RevokeAccountSessions(d))
		admin.With(authn.RequireAdmin(models.PermManageSettings)).Post("/sessions/cleanup", handlers.CleanupSessions(d))
		admin.With(authn.RequireAdmin(models.PermManageAdmins)).Patch("/admins/{id}/permissions", handlers.UpdateAdminPermissions(d))

		admin.Group(func(super chi.Router) {
			super.Use(authn.RequireSuperAdmin)
			super.Post("/admins", handlers.PromoteAdmin(d))
			super.Patch("/admins/{id}/level", handlers.ChangeAdminLevel(d))
			super.Post("/admins/{id}/unlock", handlers.UnlockAdmin(d))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", d.Metrics.Handler())
	return r
}

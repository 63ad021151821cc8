package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kevinaaaquil/writeups/logging"
	"github.com/kevinaaaquil/writeups/metrics"
	"github.com/kevinaaaquil/writeups/middleware"
	"github.com/kevinaaaquil/writeups/service"
)

// Deps are the services the router serves.
type Deps struct {
	DB          Pinger
	Guard       *middleware.Guard
	Content     *service.ContentService
	Books       *service.BookService
	Settings    *service.SettingsService
	Accounts    *service.AccountService
	Stats       *service.StatsService
	Socket      http.Handler
	CORSOrigins []string
	MaxUpload   int64
}

func NewRouter(d Deps) http.Handler {
	authH := &AuthHandler{Accounts: d.Accounts}
	usersH := &UsersHandler{Accounts: d.Accounts}
	categoriesH := &CategoriesHandler{Content: d.Content}
	subcategoriesH := &SubcategoriesHandler{Content: d.Content}
	writeupsH := &WriteupsHandler{Content: d.Content}
	booksH := &BooksHandler{Books: d.Books, MaxBytes: d.MaxUpload}
	settingsH := &SettingsHandler{Settings: d.Settings}
	statsH := &StatsHandler{Stats: d.Stats, Content: d.Content}
	healthH := &HealthHandler{DB: d.DB}

	g := d.Guard
	loginLimit := middleware.NewLoginLimiter(d.Settings).Handler

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.Requests())
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(d.CORSOrigins))
	r.Use(metrics.Middleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"message": "welcome to the writeups API."})
	})
	r.Get("/health", healthH.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	if d.Socket != nil {
		r.Method(http.MethodGet, "/socket", d.Socket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SettingsGate(d.Settings))

		r.Get("/health", healthH.Health)
		r.Get("/metrics", metrics.Handler().ServeHTTP)
		r.Get("/settings/public", settingsH.Public)
		r.Get("/stats", statsH.Overview)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authH.Register)
			r.With(loginLimit).Post("/login", authH.Login)
			r.With(g.Any).Get("/me", authH.Me)
			r.Get("/status", authH.Status)
			r.Group(func(r chi.Router) {
				r.Use(g.UserOnly)
				r.Get("/verify", authH.Verify)
				r.Put("/change-password", authH.ChangePassword)
				r.Put("/update-profile", authH.UpdateProfile)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(loginLimit).Post("/login", authH.AdminLogin)
			r.With(g.Optional).Post("/setup", authH.AdminSetup)
			r.Group(func(r chi.Router) {
				r.Use(g.AdminOnly)
				r.Get("/me", authH.AdminMe)
				r.Get("/settings", settingsH.Get)
				r.Put("/settings", settingsH.Update)
				r.Get("/users", usersH.List)
				r.Patch("/users/{id}/block", usersH.Block)
				r.Patch("/users/{id}/status", usersH.ToggleStatus)
				r.Get("/analytics/users", statsH.UserAnalytics)
				r.Post("/maintenance/reconcile", statsH.Reconcile)
			})
		})

		r.With(g.AdminOnly).Get("/settings", settingsH.Get)
		r.With(g.AdminOnly).Put("/settings", settingsH.Update)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categoriesH.List)
			r.Get("/{id}", categoriesH.Get)
			r.Get("/{id}/subcategories", categoriesH.Subcategories)
			r.Group(func(r chi.Router) {
				r.Use(g.AdminOnly)
				r.Post("/", categoriesH.Create)
				r.Put("/{id}", categoriesH.Update)
				r.Delete("/{id}", categoriesH.Delete)
				r.Post("/{id}/subcategories", categoriesH.CreateSubcategory)
			})
		})

		r.Route("/subcategories", func(r chi.Router) {
			r.Get("/", subcategoriesH.List)
			r.Get("/{id}", subcategoriesH.Get)
			r.Group(func(r chi.Router) {
				r.Use(g.AdminOnly)
				r.Post("/", subcategoriesH.Create)
				r.Put("/{id}", subcategoriesH.Update)
				r.Delete("/{id}", subcategoriesH.Delete)
			})
		})

		r.Route("/writeups", func(r chi.Router) {
			r.Get("/", writeupsH.List)
			r.Get("/recent", writeupsH.Recent)
			r.Get("/search", writeupsH.Search)
			r.Get("/category/{slug}", writeupsH.ByCategory)
			r.Get("/subcategory/{slug}", writeupsH.BySubcategory)
			r.With(g.Optional).Get("/{id}", writeupsH.Get)
			r.With(g.UserOnly).Post("/{id}/read", writeupsH.Read)
			r.Group(func(r chi.Router) {
				r.Use(g.AdminOnly)
				r.Get("/all", writeupsH.All)
				r.Post("/", writeupsH.Create)
				r.Put("/{id}", writeupsH.Update)
				r.Delete("/{id}", writeupsH.Delete)
			})
		})

		r.Route("/books", func(r chi.Router) {
			r.Get("/", booksH.List)
			r.Get("/search", booksH.Search)
			r.Get("/{id}", booksH.Get)
			r.Get("/{id}/stats", booksH.Stats)
			r.Get("/{id}/cover", booksH.Cover)
			r.With(g.Optional).Post("/{id}/reads", booksH.Reads)
			r.Group(func(r chi.Router) {
				r.Use(g.Any)
				r.Get("/{id}/pdf", booksH.PDF)
				r.Get("/{id}/progress", booksH.GetProgress)
				r.Post("/{id}/progress", booksH.UpdateProgress)
			})
			r.Group(func(r chi.Router) {
				r.Use(g.AdminOnly)
				r.Post("/", booksH.Create)
				r.Put("/{id}", booksH.Update)
				r.Delete("/{id}", booksH.Delete)
				r.Post("/reset-today-reads", booksH.ResetTodayReads)
			})
		})
	})
	return r
}

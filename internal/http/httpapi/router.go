package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"lookbook/internal/http/handlers"
	"lookbook/internal/infra"
	"lookbook/internal/middleware"
)

// Options configures the cross-cutting middleware.
type Options struct {
	AllowedOrigins  []string
	RateLimitPerMin int
	Logger          *infra.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/session", app.Session)
		r.Get("/events", app.Events)
		r.Get("/items/{id}/preview", app.ItemPreview)
		r.Get("/items/{id}/result", app.ItemResult)
		r.Get("/exports/zip", app.ExportZip)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
			r.Put("/settings", app.UpdateSettings)
			r.Put("/credentials", app.UpdateCredentials)
			r.Delete("/credentials", app.ResetCredentials)
			r.Post("/items", app.UploadItems)
			r.Delete("/items/{id}", app.DeleteItem)
			r.Post("/batches", app.StartBatch)
			r.Post("/exports", app.ExportResults)
		})
	})

	return r
}

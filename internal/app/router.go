package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stitchtrack/stitchtrack/internal/cutting"
	"github.com/stitchtrack/stitchtrack/internal/masterdata"
	"github.com/stitchtrack/stitchtrack/internal/payments"
	"github.com/stitchtrack/stitchtrack/internal/qc"
	"github.com/stitchtrack/stitchtrack/internal/stitching"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	MasterDataHandler *masterdata.Handler
	CuttingHandler    *cutting.Handler
	StitchingHandler  *stitching.Handler
	QCHandler         *qc.Handler
	PaymentsHandler   *payments.Handler
}

// NewRouter constructs the chi.Router with StitchTrack defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/master", params.MasterDataHandler.MountRoutes)
	r.Route("/api/cutting", params.CuttingHandler.MountRoutes)
	r.Route("/api/stitching", params.StitchingHandler.MountRoutes)
	r.Route("/api/qc", params.QCHandler.MountRoutes)
	r.Route("/api/payments", params.PaymentsHandler.MountRoutes)

	// Rendered QR and barcode PNGs for sticker printing.
	uploads := http.StripPrefix("/uploads/", http.FileServer(http.Dir(params.Config.UploadDir)))
	r.Handle("/uploads/*", staticCacheHandler(uploads))

	return r
}

// staticCacheHandler serves generated code images with a browser cache
// window; the files are immutable once written.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}

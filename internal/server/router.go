package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/forPelevin/hlscene/internal/config"
	"github.com/forPelevin/hlscene/internal/service"
)

const Version = "1.0.0"

type App struct {
	Service       *service.Service
	Defaults      config.SelectionConfig
	MaxUploadSize int64
	Log           zerolog.Logger
}

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(app.Log))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", app.UploadHandler)
		r.Get("/status/{jobID}", app.StatusHandler)
		r.Get("/results/{jobID}", app.ResultsHandler)
		r.Get("/download/{jobID}/{filename}", app.DownloadHandler)
		r.Get("/transcript/{jobID}", app.TranscriptHandler)
		r.Post("/cleanup", app.CleanupHandler)
		r.Get("/health", app.HealthHandler)
	})
	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("http request")
		})
	}
}

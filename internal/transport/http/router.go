package http

import (
	"net/http"
	"time"

	"github.com/cwrk-planet/realtime-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Deps struct {
	Handler *Handler
	WS      http.HandlerFunc
	// SessionAuth и InternalAuth - обязательные middleware для групп маршрутов
	SessionAuth    func(http.Handler) http.Handler
	InternalAuth   func(http.Handler) http.Handler
	Metrics        http.Handler
	AllowedOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httputil.MiddlewareRequestID)

	// WS: без logging/timeout - им нужен Hijacker и долгоживущее соединение
	r.Get("/ws", d.WS)

	r.Group(func(gr chi.Router) {
		gr.Use(httputil.MiddlewareLogging)
		gr.Use(middleware.Timeout(30 * time.Second))

		gr.Group(func(pr chi.Router) {
			pr.Use(cors.Handler(cors.Options{
				AllowedOrigins:   d.AllowedOrigins,
				AllowedMethods:   []string{"GET", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
			pr.Use(d.SessionAuth)

			pr.Get("/presence", d.Handler.ListOnline)
			pr.Get("/presence/{userID}", d.Handler.GetPresence)
		})

		gr.Group(func(ir chi.Router) {
			ir.Use(d.InternalAuth)
			ir.Post("/internal/notify", d.Handler.Notify)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	return r
}

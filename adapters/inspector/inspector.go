// Package inspector provides the local HTTP surface for watching and
// driving a running client: health, sync state, the rendered document,
// synthetic interactions and Prometheus metrics.
package inspector

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/artpar/monoclient/adapters/clock"
	_ "github.com/artpar/monoclient/docs/swagger" // swagger docs
	"github.com/artpar/monoclient/app"
	"github.com/artpar/monoclient/domain/dom"
	"github.com/artpar/monoclient/domain/event"
	"github.com/artpar/monoclient/domain/path"
	"github.com/artpar/monoclient/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Client is the running client the inspector reports on.
type Client interface {
	MonoID() string
	State() app.State
	Pending() int
	Document() *dom.Document
	Interact(in app.Interaction) error
}

// Config holds the router dependencies.
type Config struct {
	Client  Client
	Version string
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	// Clock times requests; it defaults to the wall clock.
	Clock  ports.Clock
	Logger zerolog.Logger
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	State         string `json:"state"`
	MonoID        string `json:"mono_id"`
	PendingInputs int    `json:"pending_inputs"`
}

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

type handler struct {
	client  Client
	version string
	logger  zerolog.Logger
}

// NewRouter creates the inspector router.
func NewRouter(cfg Config) chi.Router {
	logger := cfg.Logger.With().Str("component", "inspector").Logger()
	h := &handler{client: cfg.Client, version: cfg.Version, logger: logger}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(NewLoggingMiddleware(logger, clk))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Get("/version", h.versionInfo)
	r.Get("/state", h.state)
	r.Get("/dom", h.dom)
	r.Post("/interact", h.interact)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// health reports that the inspector is up.
//
//	@Summary		Liveness check
//	@Description	Returns OK if the inspector is serving
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	map[string]string	"status: ok"
//	@Router			/healthz [get]
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// versionInfo returns the build version.
//
//	@Summary		Get client version
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	VersionResponse	"Version information"
//	@Router			/version [get]
func (h *handler) versionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: h.version, Service: "monoclient"})
}

// state reports the sync loop state.
//
//	@Summary		Get sync state
//	@Description	Returns the sync loop state, the root mono id and the number of held input events
//	@Tags			Client
//	@Produce		json
//	@Success		200	{object}	StateResponse	"Sync state"
//	@Router			/state [get]
func (h *handler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{
		State:         h.client.State().String(),
		MonoID:        h.client.MonoID(),
		PendingInputs: h.client.Pending(),
	})
}

// dom renders the live document.
//
//	@Summary		Render document
//	@Tags			Client
//	@Produce		html
//	@Success		200	{string}	string			"Rendered HTML"
//	@Failure		500	{object}	ErrorResponse	"Render failed"
//	@Router			/dom [get]
func (h *handler) dom(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.client.Document().Render(&buf); err != nil {
		h.logger.Error().Err(err).Msg("render document")
		writeError(w, errInternal("failed to render document"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// interact dispatches a synthetic event under the root.
//
//	@Summary		Dispatch interaction
//	@Description	Sets the live value or checked state when given, then dispatches the event at the element addressed by path
//	@Tags			Client
//	@Accept			json
//	@Produce		json
//	@Param			interaction	body	app.Interaction	true	"Interaction"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse	"Invalid body or type"
//	@Failure		404	{object}	ErrorResponse	"No element at path"
//	@Failure		409	{object}	ErrorResponse	"Client stopped"
//	@Failure		422	{object}	ErrorResponse	"Listener failed"
//	@Router			/interact [post]
func (h *handler) interact(w http.ResponseWriter, r *http.Request) {
	var in app.Interaction
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
		writeError(w, errBadRequest("invalid JSON body"))
		return
	}
	if !slices.Contains(event.Kinds, event.Kind(in.Type)) {
		writeError(w, errBadRequest("unknown interaction type "+in.Type))
		return
	}

	if err := h.client.Interact(in); err != nil {
		switch {
		case errors.Is(err, path.ErrOutOfBounds), errors.Is(err, app.ErrRootNotFound):
			writeError(w, errNotFound(err.Error()))
		case errors.Is(err, app.ErrStopped):
			writeError(w, errConflict(err.Error()))
		default:
			writeError(w, errUnprocessable(err.Error()))
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// NewLoggingMiddleware logs inspector requests at debug level.
func NewLoggingMiddleware(logger zerolog.Logger, clk ports.Clock) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := clk.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks, metrics and docs
			if strings.HasPrefix(r.URL.Path, "/healthz") || r.URL.Path == "/metrics" ||
				strings.HasPrefix(r.URL.Path, "/swagger") {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", clk.Now().Sub(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelcache/internal/engine"
	"modelcache/internal/preload"
	"modelcache/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Discover(dir string) ([]types.Model, error)
	Verify(id string) (bool, error)
	Status() types.StatusResponse
	ResolveID(id string) (string, error)
	Acquire(ctx context.Context, id string) (engine.Model, error)
	Preload(id string) (preload.Task, error)
	Unload(id string) error
	QueueSize() int
	Ready() bool
}

type handlers struct{ svc Service }

func NewMux(svc Service) http.Handler {
	h := handlers{svc: svc}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.Get("/models", h.listModels)
	r.Post("/models/discover", h.discover)
	r.Get("/models/{id}/verify", h.verify)
	r.Get("/status", h.status)
	r.Post("/cache", h.acquire)
	r.Post("/cache/{id}", h.acquire)
	r.Delete("/cache/{id}", h.unload)
	r.Post("/preload/{id}", h.preload)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no models"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

// listModels godoc
// @Summary      List registered models
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func (h handlers) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: h.svc.ListModels()})
}

// discover godoc
// @Summary      Scan a directory for *.gguf models and register them
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        request  body      types.DiscoverRequest  false  "Directory to scan"
// @Success      200      {object}  types.ModelsResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Router       /models/discover [post]
func (h handlers) discover(w http.ResponseWriter, r *http.Request) {
	var req types.DiscoverRequest
	if r.ContentLength != 0 {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	start := time.Now()
	models, err := h.svc.Discover(req.Dir)
	if err != nil {
		status := statusFor(err)
		logOp(r, "discover", "", status, start, err)
		writeJSONError(w, status, err.Error())
		return
	}
	logOp(r, "discover", "", http.StatusOK, start, nil)
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: models})
}

// verify godoc
// @Summary      Re-hash a model file and compare it with the registered hash
// @Tags         models
// @Produce      json
// @Param        id   path      string  true  "Model id"
// @Success      200  {object}  types.VerifyResponse
// @Failure      404  {object}  types.ErrorResponse
// @Router       /models/{id}/verify [get]
func (h handlers) verify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	start := time.Now()
	ok, err := h.svc.Verify(id)
	if err != nil {
		status := statusFor(err)
		logOp(r, "verify", id, status, start, err)
		writeJSONError(w, status, err.Error())
		return
	}
	logOp(r, "verify", id, http.StatusOK, start, nil)
	writeJSON(w, http.StatusOK, types.VerifyResponse{ModelID: id, Valid: ok})
}

// status godoc
// @Summary      Cache, scheduler, optimizer and GC state
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (h handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// acquire godoc
// @Summary      Load a model into the cache (or hit it) and mark it used
// @Description  Without an id the configured default model is acquired.
// @Tags         cache
// @Produce      json
// @Param        id   path      string  true  "Model id"
// @Success      200  {object}  types.AcquireResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      502  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Failure      504  {object}  types.ErrorResponse
// @Failure      507  {object}  types.ErrorResponse
// @Router       /cache/{id} [post]
func (h handlers) acquire(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := h.svc.ResolveID(chi.URLParam(r, "id"))
	if err != nil {
		status := statusFor(err)
		logOp(r, "acquire", id, status, start, err)
		writeJSONError(w, status, err.Error())
		return
	}
	// Join server base context with request context so shutdown cancels waits too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if acquireTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, acquireTimeout)
		defer cancelTimeout()
	}
	m, err := h.svc.Acquire(ctx, id)
	if err != nil {
		// Client went away; nobody is listening for the error.
		if r.Context().Err() != nil {
			return
		}
		status := statusFor(err)
		if errors.Is(err, context.Canceled) && serverBaseCtx.Err() != nil {
			status = http.StatusServiceUnavailable
		}
		if status == http.StatusInsufficientStorage {
			IncrementRejection("capacity")
		}
		logOp(r, "acquire", id, status, start, err)
		writeJSONError(w, status, err.Error())
		return
	}
	logOp(r, "acquire", id, http.StatusOK, start, nil)
	writeJSON(w, http.StatusOK, types.AcquireResponse{ModelID: id, SizeBytes: m.SizeBytes()})
}

// unload godoc
// @Summary      Remove a model from the cache and release it
// @Tags         cache
// @Param        id   path  string  true  "Model id"
// @Success      204
// @Failure      404  {object}  types.ErrorResponse
// @Router       /cache/{id} [delete]
func (h handlers) unload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	start := time.Now()
	if err := h.svc.Unload(id); err != nil {
		status := statusFor(err)
		logOp(r, "unload", id, status, start, err)
		writeJSONError(w, status, err.Error())
		return
	}
	logOp(r, "unload", id, http.StatusNoContent, start, nil)
	w.WriteHeader(http.StatusNoContent)
}

// preload godoc
// @Summary      Queue a registered model for background loading
// @Tags         cache
// @Produce      json
// @Param        id   path      string  true  "Model id"
// @Success      202  {object}  types.PreloadResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      429  {object}  types.ErrorResponse
// @Router       /preload/{id} [post]
func (h handlers) preload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	start := time.Now()
	t, err := h.svc.Preload(id)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusTooManyRequests {
			IncrementRejection("preload_queue_full")
		}
		logOp(r, "preload", id, status, start, err)
		writeJSONError(w, status, err.Error())
		return
	}
	logOp(r, "preload", id, http.StatusAccepted, start, nil)
	writeJSON(w, http.StatusAccepted, types.PreloadResponse{ModelID: t.ModelID, TaskID: t.ID, QueueSize: h.svc.QueueSize()})
}

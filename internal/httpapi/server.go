package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"batchd/internal/manager"
	"batchd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	Infer(ctx context.Context, req types.InferRequest) (types.InferResponse, error)
	Ready() bool
	Flush(modelID string) error
	Unload(modelID string) error
}

// sanityChecker is optionally implemented by services that can probe the
// backend; /readyz?deep=1 uses it.
type sanityChecker interface {
	SanityCheck(ctx context.Context) (manager.SanityReport, error)
}

func NewMux(svc Service) http.Handler {
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
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/models", handleModels(svc))
	r.Get("/status", handleStatus(svc))
	r.Post("/infer", trackInflight("/infer", handleInfer(svc)))
	r.Post("/models/{id}/flush", handleFlush(svc))
	r.Delete("/models/{id}", handleUnload(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", handleReady(svc))

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// handleModels godoc
// @Summary      List models
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func handleModels(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	}
}

// handleStatus godoc
// @Summary      Batcher status
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func handleStatus(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

// handleInfer godoc
// @Summary      Run one request through the batcher
// @Description  Admits the request into its model's current batch and waits for the caller's slice of the batched result.
// @Tags         infer
// @Accept       json
// @Produce      json
// @Param        request  body      types.InferRequest  true  "Inference request"
// @Success      200      {object}  types.InferResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      502      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Failure      504      {object}  types.ErrorResponse
// @Router       /infer [post]
func handleInfer(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Content-Type check
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.InferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			// Oversized bodies also land here; report 400 without size details.
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(req.Inputs) == 0 {
			writeJSONError(w, http.StatusBadRequest, "inputs are required")
			return
		}
		if req.TimeoutMS < 0 {
			writeJSONError(w, http.StatusBadRequest, "timeout_ms must be >= 0")
			return
		}

		lvl := requestLogLevel(r)
		rid := middleware.GetReqID(r.Context())
		if lvl >= LevelDebug {
			zlog.Debug().Str("model", req.Model).Str("request_id", rid).Int("tensors", len(req.Inputs)).Msg("infer start")
		}
		start := time.Now()

		// Join server base context with request context so shutdown cancels waiting callers too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if d := effectiveTimeout(req.TimeoutMS); d > 0 {
			var cancelTimeout context.CancelFunc
			ctx, cancelTimeout = context.WithTimeout(ctx, d)
			defer cancelTimeout()
		}

		resp, err := svc.Infer(ctx, req)
		if err != nil {
			// Client went away; nobody is left to answer.
			if r.Context().Err() != nil {
				return
			}
			status := statusFor(err)
			if serverBaseCtx.Err() != nil && status == http.StatusGatewayTimeout {
				status = http.StatusServiceUnavailable
			}
			if status == http.StatusTooManyRequests {
				IncrementBackpressure("overloaded")
			}
			writeJSONError(w, status, err.Error())
			logInferEnd(lvl, inferLog{status: status, dur: time.Since(start), model: req.Model, requestID: rid, err: err})
			return
		}
		writeJSON(w, http.StatusOK, resp)
		logInferEnd(lvl, inferLog{
			status:    http.StatusOK,
			dur:       time.Since(start),
			model:     resp.Model,
			requestID: rid,
			batchID:   resp.BatchID,
			batchSize: resp.BatchSize,
		})
	}
}

// handleFlush godoc
// @Summary      Dispatch a model's current batch now
// @Tags         models
// @Produce      json
// @Param        id   path      string  true  "Model id"
// @Success      202  {object}  map[string]string
// @Failure      404  {object}  types.ErrorResponse
// @Router       /models/{id}/flush [post]
func handleFlush(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.Flush(id); err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"model": id, "status": "flushed"})
	}
}

// handleUnload godoc
// @Summary      Drain and release a model's batcher
// @Tags         models
// @Produce      json
// @Param        id   path      string  true  "Model id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  types.ErrorResponse
// @Router       /models/{id} [delete]
func handleUnload(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.Unload(id); err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		zlog.Info().Str("model", id).Msg("model unloaded")
		writeJSON(w, http.StatusOK, map[string]string{"model": id, "status": "unloaded"})
	}
}

// handleReady reports readiness. With ?deep=1 the backend is probed too.
func handleReady(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !svc.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		if r.URL.Query().Get("deep") == "1" {
			if sc, ok := svc.(sanityChecker); ok {
				ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
				defer cancel()
				rep, err := sc.SanityCheck(ctx)
				status := http.StatusOK
				if err != nil {
					status = http.StatusServiceUnavailable
				}
				writeJSON(w, status, rep)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}

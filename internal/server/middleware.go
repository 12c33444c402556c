// Package server implements the reference HTTP host for the relevance engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/ctxutil"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/telemetry"
)

// requestIDMiddleware assigns a unique request ID to each request.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		ctx := ctxutil.WithRequestID(r.Context(), reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// securityHeadersMiddleware sets headers for a JSON-only API.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request with structured fields.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", ctxutil.RequestIDFromContext(r.Context()),
		}
		if tid := traceIDFromContext(r.Context()); tid != "" {
			attrs = append(attrs, "trace_id", tid)
		}

		level := slog.LevelInfo
		if wrapped.statusCode >= 500 {
			level = slog.LevelError
		} else if wrapped.statusCode >= 400 {
			level = slog.LevelWarn
		}
		logger.Log(r.Context(), level, "http request", attrs...)
	})
}

// recoveryMiddleware turns a handler panic into a 500 response.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.Error("http handler panic",
					"panic", fmt.Sprint(v),
					"path", r.URL.Path,
					"request_id", ctxutil.RequestIDFromContext(r.Context()),
					"stack", string(debug.Stack()))
				writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.statusCode = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

var (
	tracer    = telemetry.Tracer("relevance/http")
	httpMeter = telemetry.Meter("relevance/http")
)

// tracingMiddleware creates an OTEL span for each HTTP request and records
// request count and duration metrics. The route pattern, not the raw path,
// labels the metrics so ids do not explode cardinality.
func tracingMiddleware(next http.Handler) http.Handler {
	requests, _ := httpMeter.Int64Counter("http.server.request_count")
	durations, _ := httpMeter.Float64Histogram("http.server.duration", otelmetric.WithUnit("ms"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.url", r.URL.Path),
				attribute.String("http.request_id", ctxutil.RequestIDFromContext(r.Context())),
			),
		)
		defer span.End()

		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		r = r.WithContext(ctx)
		next.ServeHTTP(wrapped, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		span.SetAttributes(
			attribute.Int("http.status_code", wrapped.statusCode),
			attribute.String("http.route", route),
		)
		attrs := otelmetric.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.status_code", strconv.Itoa(wrapped.statusCode)),
		)
		if requests != nil {
			requests.Add(ctx, 1, attrs)
		}
		if durations != nil {
			durations.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		}
	})
}

// traceIDFromContext extracts the OTEL trace ID from the context, if any.
func traceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

func newMeta(r *http.Request) model.ResponseMeta {
	return model.ResponseMeta{
		RequestID: ctxutil.RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UTC(),
	}
}

// writeJSON writes a JSON response with the standard envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSONMeta(w, r, status, data, newMeta(r))
}

// writeJSONMeta writes a JSON response with caller-supplied metadata, used
// when a batch skipped items or the engine reported warnings.
func writeJSONMeta(w http.ResponseWriter, r *http.Request, status int, data any, meta model.ResponseMeta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{Data: data, Meta: meta})
}

// writeError writes a JSON error response with the standard envelope.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIError{
		Error: model.ErrorDetail{Code: code, Message: message},
		Meta:  newMeta(r),
	})
}

// decodeJSON decodes a size-limited JSON request body into target.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any, maxBytes int64) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// handleDecodeError maps a decodeJSON failure to a 400 or 413 response.
func handleDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, r, http.StatusRequestEntityTooLarge, model.ErrCodeInvalidInput,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
}

package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"chancafe-q/backend/internal/apperr"
	"chancafe-q/backend/internal/metrics"
)

const tracerName = "chancafe-q/http"

// routeOf returns the matched route pattern, or "unmatched" for 404s so raw paths never become labels.
func routeOf(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return "unmatched"
}

// Recovery converts panics into the 500 envelope.
func Recovery(errs ErrorWriter, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic serving request",
					zap.Any("panic", r),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"))
				errs.Error(c, apperr.Internal("", fmt.Errorf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}

// RequestLogger logs one line per request. Bodies and headers are never logged.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", routeOf(c)),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", ClientIP(c)),
		}
		if p, ok := GetPrincipal(c); ok {
			fields = append(fields, zap.String("user_id", p.ID))
		}
		if e := c.Errors.Last(); e != nil {
			if ae := apperr.As(e.Err); ae != nil {
				fields = append(fields, zap.String("code", ae.Code))
			}
		}
		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// Tracing starts a server span per request, continuing any propagated trace context.
func Tracing() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		route := routeOf(c)
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("url.path", c.Request.URL.Path),
				attribute.String("client.address", ClientIP(c)),
			))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if e := c.Errors.Last(); e != nil {
			span.SetAttributes(attribute.String("app.error_code", apperr.As(e.Err).Code))
		}
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
	}
}

// Metrics records request counts and latencies, and the codes of rejected auth requests.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		m.ObserveHTTP(c.Request.Method, routeOf(c), status, time.Since(start))
		if e := c.Errors.Last(); e != nil {
			if ae := apperr.As(e.Err); ae.Kind == apperr.KindAuthentication || ae.Kind == apperr.KindAuthorization {
				m.RecordAuthFailure(ae.Code)
			}
		}
	}
}

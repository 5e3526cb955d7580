package handlers

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nfmesh/scp/internal/logger"
	"github.com/nfmesh/scp/pkg/bufpool"
	"github.com/nfmesh/scp/pkg/metrics"
	"github.com/nfmesh/scp/pkg/proxy"
)

// maxBufferedBody caps how much request body is buffered for replay
// across retry attempts.
const maxBufferedBody = 16 << 20 // 16 MiB

// ProxyHandler is the catch-all handler feeding the failover engine.
type ProxyHandler struct {
	engine  *proxy.Engine
	metrics *metrics.ProxyMetrics
}

// NewProxyHandler creates the proxy catch-all handler.
func NewProxyHandler(engine *proxy.Engine, m *metrics.ProxyMetrics) *ProxyHandler {
	return &ProxyHandler{engine: engine, metrics: m}
}

// Proxy forwards any request that did not match a management route.
func (h *ProxyHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := middleware.GetReqID(r.Context())
	clientIP := clientAddr(r)

	lc := logger.NewLogContext(clientIP)
	lc.RequestID = requestID
	ctx := logger.WithContext(r.Context(), lc)

	// Buffer the body once so retries and failover can replay it.
	body, err := bufpool.ReadAll(io.LimitReader(r.Body, maxBufferedBody+1), r.ContentLength)
	if err != nil {
		WriteProblemWithInstance(w, http.StatusInternalServerError,
			"Internal Server Error", "failed to read request body", requestID)
		return
	}
	if len(body) > maxBufferedBody {
		WriteProblemWithInstance(w, http.StatusRequestEntityTooLarge,
			"Payload Too Large", "request body exceeds the buffering limit", requestID)
		return
	}

	response, err := h.engine.Handle(ctx, &proxy.Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		RawQuery:  r.URL.RawQuery,
		SessionID: clientIP,
		Header:    r.Header,
		Body:      body,
	})

	nfType, _ := proxy.NFTypeFromPath(r.URL.Path)
	if err != nil {
		status := http.StatusInternalServerError
		if perr, ok := err.(*proxy.Error); ok {
			status = perr.Status
		}
		h.metrics.ObserveRequest(nfType, statusClass(status), time.Since(start).Seconds())
		logger.WarnCtx(ctx, "proxy request failed",
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, status,
			logger.KeyError, err.Error(),
		)
		WriteError(w, err, requestID)
		return
	}

	for key, values := range response.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(response.StatusCode)
	_, _ = w.Write(response.Body)

	h.metrics.ObserveRequest(nfType, statusClass(response.StatusCode), time.Since(start).Seconds())
	logger.InfoCtx(ctx, "proxy request completed",
		logger.KeyMethod, r.Method,
		logger.KeyPath, r.URL.Path,
		logger.KeyStatus, response.StatusCode,
		logger.KeyDurationMs, logger.Duration(start),
	)
}

// clientAddr returns the client IP without the port. The RealIP
// middleware has already folded X-Forwarded-For into RemoteAddr.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// statusClass buckets a status code for metric labels ("2xx", "5xx").
func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}

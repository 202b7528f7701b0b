package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/maintlog/logbook-gateway/internal/api/metrics"
	gwmiddleware "github.com/maintlog/logbook-gateway/internal/api/middleware"
	"github.com/maintlog/logbook-gateway/internal/upstream"
)

// forwardedHeaders are the only request headers passed through to the
// upstream. Cookies in particular must not leak: the per-session jar owns
// the upstream cookies and the gateway cookie is meaningless upstream.
var forwardedHeaders = []string{"Content-Type", "Accept", "Accept-Language"}

// ProxyHandler forwards guarded /api routes to the upstream logbook API.
// Authenticated sessions go through their own cookie jar; public callers go
// through the shared credential-less client, matching the upstream's
// intentional acceptance of anonymous issue and remedy writes.
type ProxyHandler struct {
	public *upstream.Client
	prefix string
	log    zerolog.Logger
}

func NewProxyHandler(public *upstream.Client, prefix string, log zerolog.Logger) *ProxyHandler {
	if prefix == "" {
		prefix = "/api"
	}
	return &ProxyHandler{public: public, prefix: prefix, log: log}
}

// Forward relays the request and streams the upstream response back.
func (h *ProxyHandler) Forward(c echo.Context) error {
	req := c.Request()

	client := h.public
	if entry := gwmiddleware.Entry(c); entry != nil && entry.Store.Snapshot().IsAuthenticated {
		client = entry.Client
	}

	path := strings.TrimPrefix(req.URL.Path, h.prefix)
	if path == "" {
		path = "/"
	}
	if req.URL.RawQuery != "" {
		path += "?" + req.URL.RawQuery
	}

	header := http.Header{}
	for _, name := range forwardedHeaders {
		if v := req.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}

	start := time.Now()
	resp, err := client.Do(req.Context(), req.Method, path, req.Body, header)
	metrics.UpstreamRequestDuration.WithLabelValues("proxy").Observe(time.Since(start).Seconds())
	if err != nil {
		h.log.Error().Err(err).Str("path", path).Msg("upstream forward failed")
		return echo.NewHTTPError(http.StatusBadGateway, "upstream unavailable")
	}
	defer resp.Body.Close()

	for _, name := range []string{"Content-Type", "Cache-Control"} {
		if v := resp.Header.Get(name); v != "" {
			c.Response().Header().Set(name, v)
		}
	}
	c.Response().WriteHeader(resp.StatusCode)
	_, err = io.Copy(c.Response(), resp.Body)
	return err
}

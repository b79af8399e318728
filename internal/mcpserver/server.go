// Package mcpserver exposes the tool registry over the Model Context
// Protocol, on stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"lunchtools/internal/log"
	"lunchtools/internal/middleware/ratelimit"
	"lunchtools/internal/middleware/security"
	"lunchtools/internal/middleware/trace"
	"lunchtools/internal/refcache"
	"lunchtools/internal/tools"
)

const (
	// Name is announced to clients during initialization.
	Name = "lunchtools"

	// EndpointPath is where the HTTP transport serves MCP.
	EndpointPath = "/mcp"

	shutdownTimeout = 10 * time.Second
)

// Server binds a tool registry to an MCP server.
type Server struct {
	mcp      *server.MCPServer
	registry *tools.Registry
	refs     *refcache.Cache
	logger   *log.Logger

	// Set by HTTPHandler; reported by the health endpoint.
	tracer  *trace.Middleware
	limiter *ratelimit.Limiter
}

// New registers every tool of registry. refs is only consulted by the HTTP
// health endpoint and may be nil.
func New(registry *tools.Registry, refs *refcache.Cache, version string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &Server{
		mcp: server.NewMCPServer(Name, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		registry: registry,
		refs:     refs,
		logger:   logger.WithComponent(log.ComponentMCP),
	}
	for _, t := range registry.Tools() {
		s.mcp.AddTool(toolDefinition(t), s.handler(t.Name))
	}
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// toolDefinition describes t in MCP terms.
func toolDefinition(t tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}
	for _, p := range t.Params {
		opts = append(opts, paramOption(p))
	}
	if t.Writes {
		opts = append(opts,
			mcp.WithReadOnlyHintAnnotation(false),
			mcp.WithDestructiveHintAnnotation(isDelete(t.Name)),
		)
	} else {
		opts = append(opts, mcp.WithReadOnlyHintAnnotation(true))
	}
	return mcp.NewTool(t.Name, opts...)
}

func isDelete(name string) bool {
	return strings.HasPrefix(name, "delete_")
}

func paramOption(p tools.Param) mcp.ToolOption {
	props := []mcp.PropertyOption{mcp.Description(p.Description)}
	if p.Required {
		props = append(props, mcp.Required())
	}
	switch p.Type {
	case tools.TypeInteger, tools.TypeNumber:
		return mcp.WithNumber(p.Name, props...)
	case tools.TypeBoolean:
		return mcp.WithBoolean(p.Name, props...)
	case tools.TypeIDList:
		props = append(props, mcp.Items(map[string]any{"type": "integer"}))
		return mcp.WithArray(p.Name, props...)
	default:
		if len(p.Enum) > 0 {
			props = append(props, mcp.Enum(p.Enum...))
		}
		return mcp.WithString(p.Name, props...)
	}
}

// handler adapts a registry call. Tool failures are returned as error
// results so the model sees the message; they are not protocol errors.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := s.registry.Call(ctx, name, tools.Args(req.GetArguments()))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(res.String()), nil
	}
}

// ServeStdio serves until ctx is cancelled or in reaches EOF.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.InfoContext(ctx, "Serving MCP on stdio", log.FieldTransport, "stdio")
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("stdio transport: %w", err)
	}
	return nil
}

// HTTPOptions configures the HTTP transport middleware.
type HTTPOptions struct {
	// RateLimitPerMinute of 0 disables rate limiting.
	RateLimitPerMinute int
	TrustedProxies     []string
}

// HTTPHandler returns the MCP endpoint and /healthz behind request tracing
// and per-client rate limiting. The returned stop func releases the
// limiter.
func (s *Server) HTTPHandler(opts HTTPOptions) (http.Handler, func(), error) {
	ips, err := security.NewClientIPResolver(opts.TrustedProxies)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(EndpointPath, server.NewStreamableHTTPServer(s.mcp))
	mux.HandleFunc("/healthz", s.health)

	var handler http.Handler = mux
	stop := func() {}
	if opts.RateLimitPerMinute > 0 {
		limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
		handler = limiter.Middleware(ips.ClientIP)(handler)
		stop = limiter.Stop
		s.limiter = limiter
	}
	s.tracer = trace.NewMiddleware(s.logger, ips.ClientIP)
	handler = s.tracer.Middleware(handler)
	return handler, stop, nil
}

type healthResponse struct {
	Status string         `json:"status"`
	Ready  bool           `json:"reference_cache_ready"`
	Tables map[string]int `json:"reference_tables,omitempty"`
	HTTP   *httpStats     `json:"http,omitempty"`
}

type httpStats struct {
	Requests     int64 `json:"requests"`
	ServerErrors int64 `json:"server_errors"`
	RateLimited  int64 `json:"rate_limited"`
	Clients      int64 `json:"clients"`
}

// health reports "ok" when reference data is loaded and "degraded" when
// names are being shown as ids. Both answer 200: the server is usable.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Ready: true}
	if s.refs != nil {
		sizes, err := s.refs.Sizes()
		if err != nil {
			resp.Status, resp.Ready = "degraded", false
		} else {
			resp.Tables = make(map[string]int, len(sizes))
			for res, n := range sizes {
				resp.Tables[string(res)] = n
			}
		}
	}
	if s.tracer != nil {
		m := s.tracer.GetMetrics()
		resp.HTTP = &httpStats{Requests: m.TotalRequests, ServerErrors: m.ServerErrors}
		if s.limiter != nil {
			lm := s.limiter.GetMetrics()
			resp.HTTP.RateLimited, resp.HTTP.Clients = lm.Rejected, lm.ClientCount
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to write health response", log.FieldError, err.Error())
	}
}

// ServeHTTP listens on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ServeHTTP(ctx context.Context, addr string, opts HTTPOptions) error {
	handler, stop, err := s.HTTPHandler(opts)
	if err != nil {
		return err
	}
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "Serving MCP over HTTP",
			log.FieldTransport, "http",
			"addr", addr,
			log.FieldPath, EndpointPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http transport: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("HTTP transport stopped")
	return nil
}

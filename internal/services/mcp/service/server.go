package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/louisbranch/tapestry/internal/platform/timeouts"
	"github.com/louisbranch/tapestry/internal/services/mcp/domain"
	"github.com/louisbranch/tapestry/internal/services/player"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "tapestry"
	serverVersion = "0.1.0"
)

// Transport kinds.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config selects how the MCP server is exposed.
type Config struct {
	Transport string
	// HTTPAddr is the listen address for the HTTP transport.
	HTTPAddr string
}

// Server is an MCP server bound to one sheet service.
type Server struct {
	mcpServer *mcp.Server
}

// New registers the character tools against the player session.
func New(session *player.Session) (*Server, error) {
	if session == nil {
		return nil, errors.New("player session is required")
	}
	return NewWithService(sessionSheets{session: session})
}

// NewWithService registers the character tools against svc.
func NewWithService(svc domain.SheetService) (*Server, error) {
	if svc == nil {
		return nil, errors.New("sheet service is required")
	}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerCharacterTools(mcpServer, svc)
	return &Server{mcpServer: mcpServer}, nil
}

func registerCharacterTools(server *mcp.Server, svc domain.SheetService) {
	mcp.AddTool(server, domain.CharacterListTool(), domain.CharacterListHandler(svc))
	mcp.AddTool(server, domain.CharacterGetTool(), domain.CharacterGetHandler(svc))
	mcp.AddTool(server, domain.CharacterPatchTool(), domain.CharacterPatchHandler(svc))
	mcp.AddTool(server, domain.CharacterHPTool(), domain.CharacterHPHandler(svc))
	mcp.AddTool(server, domain.CharacterThreadsTool(), domain.CharacterThreadsHandler(svc))
}

// Run serves on the configured transport until ctx ends.
func (s *Server) Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	switch cfg.Transport {
	case TransportStdio:
		return s.serveWithTransport(ctx, &mcp.StdioTransport{})
	case TransportHTTP:
		listener, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			return fmt.Errorf("listen on mcp http addr %s: %w", cfg.HTTPAddr, err)
		}
		return s.ServeHTTP(ctx, listener)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// serveWithTransport runs the MCP server on transport.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// ServeHTTP serves the streamable HTTP transport on listener until ctx ends.
func (s *Server) ServeHTTP(ctx context.Context, listener net.Listener) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcpServer }, nil)
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("mcp http listening at %s", listener.Addr())
		serveErr <- httpServer.Serve(listener)
	}()
	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve mcp http: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown mcp http: %w", err)
		}
		return nil
	}
}

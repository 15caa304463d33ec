// Package server runs the HTTP listener that receives OAuth redirects.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/brizzai/oauth-callback/internal/config"
	"github.com/brizzai/oauth-callback/internal/logger"
	"github.com/brizzai/oauth-callback/internal/server/handler"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const readHeaderTimeout = 10 * time.Second

// ErrNotListening is returned by Serve when Listen has not been called
var ErrNotListening = errors.New("server is not listening")

// Server owns the callback listener and its http.Server.
type Server struct {
	config  *config.Config
	handler *handler.Handler

	mu       sync.Mutex
	listener net.Listener
	http     *http.Server
}

// NewServer creates a callback server for the given configuration.
func NewServer(cfg *config.Config, h *handler.Handler) *Server {
	return &Server{
		config:  cfg,
		handler: h,
	}
}

// Listen binds the configured address. Bind failures such as a port already
// in use are reported here, before any request is served.
func (s *Server) Listen() error {
	addr := s.config.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = ln
	s.http = &http.Server{
		Handler:           s.handler.CreateHTTPHandler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          zap.NewStdLog(logger.GetLogger()),
	}
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the base URL of the running server, or "" before Listen.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	return "http://" + addr
}

// Serve accepts connections until Shutdown is called. It returns nil after a
// clean shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln, srv := s.listener, s.http
	s.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}

	logger.Info("Waiting for OAuth redirect",
		zap.String("address", ln.Addr().String()),
		zap.String("callback_url", s.config.CallbackURL()),
	)

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, ln := s.http, s.listener
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	logger.Info("Shutting down server", zap.Duration("timeout", s.config.Server.ShutdownTimeout))
	err := srv.Shutdown(ctx)
	// Shutdown only closes listeners Serve has picked up
	_ = ln.Close()
	if err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

// Start listens and serves until ctx is cancelled or the server fails.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)

	case err := <-errChan:
		return err
	}
}

// RegisterHooks ties the server to the fx application lifecycle. A serve
// failure after startup shuts the whole application down with exit code 1.
func RegisterHooks(lc fx.Lifecycle, s *Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := s.Listen(); err != nil {
				return err
			}
			go func() {
				if err := s.Serve(); err != nil {
					logger.Error("Callback server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
			defer cancel()
			return s.Shutdown(shutdownCtx)
		},
	})
}

// Module provides the callback server and starts it with the application
var Module = fx.Module("server",
	fx.Provide(
		handler.NewHandler,
		NewServer,
	),
	fx.Invoke(RegisterHooks),
)

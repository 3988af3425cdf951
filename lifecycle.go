package httpd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"
)

// hooks collects the lifecycle callbacks declared before start. Like all
// declaration state, the slices are written from one goroutine before Start
// and only read afterwards.
type hooks struct {
	onStart    []func(context.Context) error
	onReady    []func()
	onShutdown []func(context.Context)
}

// Start brings the server up exactly once: the route table is frozen, the
// middleware chain is assembled over it in registration order, on-start
// hooks run sequentially, the listener is bound, and serving begins in a
// background goroutine. Start returns once the listener is accepting;
// on-ready hooks fire asynchronously after that.
//
// A second Start — concurrent or sequential, and regardless of whether the
// first attempt succeeded — fails with ErrDuplicateStart.
func (s *Server) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateNew), int32(StateStarting)) {
		return fmt.Errorf("httpd: start: %w", ErrDuplicateStart)
	}

	// Freeze before anything else runs: from here on every registration
	// path observes the frozen table and fails fast.
	s.table.Freeze()
	handler := s.buildHandler()

	if err := s.runStartHooks(ctx); err != nil {
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("httpd: start: %w", err)
	}

	if s.certFile != "" {
		certs, err := newCertReloader(s.certFile, s.keyFile, s.reloadTLS, s.logger)
		if err != nil {
			s.state.Store(int32(StateStopped))
			return fmt.Errorf("httpd: start: %w", err)
		}
		s.certs = certs
	}

	s.httpServer = &http.Server{
		Handler:           handler,
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: s.readHeaderTimeout,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       s.idleTimeout,
		MaxHeaderBytes:    s.maxHeaderBytes,
	}
	if s.certs != nil {
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion:     tls.VersionTLS12,
			GetCertificate: s.certs.GetCertificate,
		}
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		if s.certs != nil {
			s.certs.Close()
		}
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("httpd: start: listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.state.Store(int32(StateRunning))
	s.logger.Info("server started",
		zap.String("addr", ln.Addr().String()),
		zap.Int("routes", s.table.Len()),
		zap.Bool("tls", s.certs != nil),
	)

	go s.serve(ln)
	s.runReadyHooks()

	return nil
}

// serve runs the accept loop until shutdown.
func (s *Server) serve(ln net.Listener) {
	var err error
	if s.certs != nil {
		err = s.httpServer.ServeTLS(ln, "", "")
	} else {
		err = s.httpServer.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("server error", zap.Error(err))
	}
}

// Stop shuts the server down gracefully: the listener closes, in-flight
// requests drain, then on-shutdown hooks run in LIFO order. When the
// caller's context carries no deadline, the configured shutdown timeout
// bounds the drain. Stop on a server that never started is a no-op, as is
// a second Stop.
func (s *Server) Stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return nil
	}

	s.logger.Info("stopping server", zap.String("addr", s.Addr()))

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		if closeErr := s.httpServer.Close(); closeErr != nil {
			s.logger.Error("failed to close server", zap.Error(closeErr))
		}
	}

	s.runShutdownHooks(ctx)

	if s.certs != nil {
		s.certs.Close()
	}

	s.state.Store(int32(StateStopped))
	s.logger.Info("server stopped")

	if err != nil {
		return fmt.Errorf("httpd: stop: %w", err)
	}
	return nil
}

// runStartHooks runs the on-start hooks sequentially, aborting on the first
// error.
func (s *Server) runStartHooks(ctx context.Context) error {
	for i, hook := range s.hooks.onStart {
		if err := hook(ctx); err != nil {
			return fmt.Errorf("on-start hook %d: %w", i, err)
		}
	}
	return nil
}

// runReadyHooks fires the on-ready hooks asynchronously, with panic
// recovery so a failing hook cannot take the server down.
func (s *Server) runReadyHooks() {
	for _, hook := range s.hooks.onReady {
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					s.logger.Error("on-ready hook panic", zap.Any("panic", rec))
				}
			}()
			hook()
		}()
	}
}

// runShutdownHooks runs the on-shutdown hooks in reverse registration
// order.
func (s *Server) runShutdownHooks(ctx context.Context) {
	for i := len(s.hooks.onShutdown) - 1; i >= 0; i-- {
		s.hooks.onShutdown[i](ctx)
	}
}

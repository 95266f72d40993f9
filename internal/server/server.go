// Package server assembles pagepick's HTTP surface: the proxy, the picker
// relay endpoints, copy application and generation, and the host page.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/standardbeagle/pagepick/internal/config"
	"github.com/standardbeagle/pagepick/internal/llm"
	"github.com/standardbeagle/pagepick/internal/picker"
	"github.com/standardbeagle/pagepick/internal/proxy"
	"github.com/standardbeagle/pagepick/internal/selection"
)

// Server is the pagepick HTTP server.
type Server struct {
	cfg *config.Config
	log logrus.FieldLogger

	fetcher    *proxy.Fetcher
	script     string
	selections *selection.Store
	hub        *selection.Hub
	generator  *llm.Generator
	handler    http.Handler

	listenAddr string
	httpServer *http.Server
	running    atomic.Bool
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
	lastError  atomic.Value // stores the error (string) that ended Serve, if any

	// Ready signal - closed when server is ready to accept connections
	ready     chan struct{}
	readyOnce sync.Once
}

// Option customises a Server.
type Option func(*options)

type options struct {
	fetchClient *http.Client
	provider    llm.Provider
}

// WithFetchClient sets the HTTP client used for upstream page fetches.
func WithFetchClient(c *http.Client) Option {
	return func(o *options) { o.fetchClient = c }
}

// WithProvider replaces the configured LLM provider.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// New builds a server from cfg. cfg must already be validated.
func New(cfg *config.Config, log logrus.FieldLogger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	script, err := picker.Script(cfg.Picker)
	if err != nil {
		return nil, fmt.Errorf("render picker script: %w", err)
	}

	var fetchOpts []proxy.FetcherOption
	if o.fetchClient != nil {
		fetchOpts = append(fetchOpts, proxy.WithHTTPClient(o.fetchClient))
	}
	fetcher := proxy.NewFetcher(cfg.Proxy, log.WithField("component", "proxy"), fetchOpts...)

	provider := o.provider
	if provider == nil {
		provider, err = llm.NewProvider(cfg.LLM, log.WithField("component", "llm"))
		if err != nil {
			return nil, err
		}
	}

	s := &Server{
		cfg:        cfg,
		log:        log,
		fetcher:    fetcher,
		script:     script,
		selections: selection.NewStore(cfg.Selections.BufferSize),
		hub:        selection.NewHub(log.WithField("component", "selections")),
		generator:  llm.NewGenerator(provider, llm.DefaultOptions(cfg.LLM), log.WithField("component", "llm")),
		listenAddr: cfg.Server.Listen,
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Selections returns the selection log.
func (s *Server) Selections() *selection.Store { return s.selections }

// Fetcher returns the upstream page fetcher.
func (s *Server) Fetcher() *proxy.Fetcher { return s.fetcher }

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenAddr
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		cancel()
		if isAddressInUse(err) {
			return fmt.Errorf("%s is already in use: %w", s.listenAddr, err)
		}
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddr, err)
	}

	// Update listenAddr with actual bound address
	s.listenAddr = listener.Addr().String()

	s.httpServer = &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}

	s.running.Store(true)

	// The listener is bound, so connections are accepted from here on.
	s.readyOnce.Do(func() {
		close(s.ready)
	})

	go s.serve(listener)

	s.log.WithField("addr", s.listenAddr).Info("pagepick listening")
	return nil
}

func (s *Server) serve(listener net.Listener) {
	defer close(s.done)
	err := s.httpServer.Serve(listener)
	s.running.Store(false)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.lastError.Store(err.Error())
		s.log.WithError(err).Error("server stopped unexpectedly")
	}
}

// Ready returns a channel that is closed when the server is ready to accept connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Done returns a channel that is closed once the server has stopped serving.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// LastError returns the error that stopped the server unexpectedly, if any.
func (s *Server) LastError() string {
	if v, ok := s.lastError.Load().(string); ok {
		return v
	}
	return ""
}

// Stop gracefully stops the server, closing live feed subscribers first.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer == nil {
		return fmt.Errorf("server not running")
	}

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.hub.Close()

	err := s.httpServer.Shutdown(ctx)
	<-s.done
	return err
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-s.done:
		if msg := s.LastError(); msg != "" {
			return errors.New(msg)
		}
		return nil
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// isAddressInUse checks if the error is due to address already in use.
func isAddressInUse(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "address already in use") ||
		strings.Contains(err.Error(), "bind") && strings.Contains(err.Error(), "in use")
}

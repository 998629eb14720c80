package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"connectrpc.com/connect"

	"github.com/chazu/tally/history"
	"github.com/chazu/tally/vm"
)

// TallyServer serves the EvaluationService over Connect, gRPC and
// gRPC-Web on one port. HTTP/2 is accepted without TLS so plain gRPC
// clients can connect.
type TallyServer struct {
	pool *Pool
	mux  *http.ServeMux
	http *http.Server
}

// ServerOption configures a TallyServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	history  *history.Store
	poolSize int
	vmOpts   []vm.Option
}

// WithHistory records every Evaluate call in store.
func WithHistory(store *history.Store) ServerOption {
	return func(c *serverConfig) { c.history = store }
}

// WithPoolSize sets the number of VMs serving requests. The default is
// GOMAXPROCS.
func WithPoolSize(n int) ServerOption {
	return func(c *serverConfig) { c.poolSize = n }
}

// WithVMOptions passes opts to every pooled VM.
func WithVMOptions(opts ...vm.Option) ServerOption {
	return func(c *serverConfig) { c.vmOpts = append(c.vmOpts, opts...) }
}

// New creates a TallyServer with its handlers registered.
func New(opts ...ServerOption) *TallyServer {
	cfg := &serverConfig{
		poolSize: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &TallyServer{
		pool: NewPool(cfg.poolSize, cfg.vmOpts...),
		mux:  http.NewServeMux(),
	}

	evalSvc := NewEvalService(s.pool, cfg.history)
	s.mux.Handle(EvaluateProcedure, connect.NewUnaryHandler(EvaluateProcedure, evalSvc.Evaluate))
	s.mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, evalSvc.Compile))
	s.mux.Handle(ExecuteProcedure, connect.NewUnaryHandler(ExecuteProcedure, evalSvc.Execute))

	return s
}

// Handler returns the request multiplexer.
func (s *TallyServer) Handler() http.Handler {
	return s.mux
}

// Protocols returns the HTTP protocols the server speaks: HTTP/1.1 and
// HTTP/2 without TLS.
func Protocols() *http.Protocols {
	p := new(http.Protocols)
	p.SetHTTP1(true)
	p.SetUnencryptedHTTP2(true)
	return p
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *TallyServer) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		Protocols:         Protocols(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Printf("tally server listening on %s\n", addr)
	fmt.Printf("  Connect (HTTP/JSON): http://%s%s\n", addr, EvaluateProcedure)
	fmt.Printf("  gRPC (binary):       grpc://%s\n", addr)
	log.Infof("listening on %s", addr)
	return s.http.ListenAndServe()
}

// Stop shuts down the HTTP server, if running, and the VM pool.
func (s *TallyServer) Stop() {
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			log.Errorf("shutdown: %s", err)
		}
	}
	s.pool.Stop()
}

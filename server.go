// Copyright 2021-2022 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package grpc

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// TLSOption selects how a Server terminates transport security.
type TLSOption int

const (
	// Plain serves cleartext HTTP/2 (h2c) -- the common case for a gRPC
	// server sitting behind a trusted proxy or used in tests.
	Plain TLSOption = iota
	// WithTLS serves HTTP/2 with TLS negotiated via ALPN, using the
	// *tls.Config supplied through ServerConf.TLSConfig.
	WithTLS
)

// ServerConf holds the tunables forwarded to the underlying
// golang.org/x/net/http2.Server, plus whatever TLS material WithTLS needs.
type ServerConf struct {
	MaxConcurrentStreams uint32
	IdleTimeout          time.Duration
	TLSConfig            *tls.Config
}

// ServerOption configures a Server at construction time.
type ServerOption func(*Server)

// WithPooledExecutor switches the server from the default inline executor
// to a PooledCallStarter bounded at size concurrent in-flight handlers.
func WithPooledExecutor(size int64) ServerOption {
	return func(s *Server) { s.executor = NewPooledCallStarter(size) }
}

// WithThreadName overrides the name used to tag the serve goroutine's log
// lines. Go has no OS-level thread-naming primitive; this is purely a log
// annotation, the closest equivalent available.
func WithThreadName(name string) ServerOption {
	return func(s *Server) { s.threadName = name }
}

// WithLogger attaches a *zap.Logger for the server's own lifecycle and
// per-call diagnostic logging. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

const defaultThreadName = "grpc-server-loop"

// Server is the facade tying a listener, an HTTP/2 transport, and a
// service definition together into a running gRPC endpoint.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	http2Conf  *http2.Server
	executor   CallStarter
	threadName string
	logger     *zap.Logger

	alive int32
	done  chan struct{}
}

// NewServer binds addr and starts serving service immediately on a
// background goroutine. Callers must eventually call Close.
func NewServer(addr string, tlsOption TLSOption, conf ServerConf, service ServerServiceDefinition, opts ...ServerOption) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener:   lis,
		executor:   InlineCallStarter{},
		threadName: defaultThreadName,
		logger:     zap.NewNop(),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	bridge := NewBridge(service, s.executor, s.logger)
	s.http2Conf = &http2.Server{
		MaxConcurrentStreams: conf.MaxConcurrentStreams,
		IdleTimeout:          conf.IdleTimeout,
	}

	var handler http.Handler = bridge
	if tlsOption == Plain {
		handler = h2c.NewHandler(bridge, s.http2Conf)
	}
	s.httpServer = &http.Server{Handler: handler}

	if tlsOption == WithTLS {
		// ConfigureServer adds "h2" to NextProtos so ALPN actually
		// negotiates HTTP/2 on the wrapped listener.
		s.httpServer.TLSConfig = conf.TLSConfig
		if err := http2.ConfigureServer(s.httpServer, s.http2Conf); err != nil {
			lis.Close()
			return nil, err
		}
		s.listener = tls.NewListener(lis, s.httpServer.TLSConfig)
	}

	atomic.StoreInt32(&s.alive, 1)
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	defer close(s.done)
	defer atomic.StoreInt32(&s.alive, 0)
	s.logger.Info("grpc server loop starting", zap.String("thread", s.threadName),
		zap.String("addr", s.listener.Addr().String()))
	err := s.httpServer.Serve(s.listener)
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error("grpc server loop failed", zap.String("thread", s.threadName), zap.Error(err))
	}
	s.logger.Info("grpc server loop exiting", zap.String("thread", s.threadName),
		zap.String("addr", s.listener.Addr().String()))
}

// LocalAddr returns the listener's bound address, useful for tests that
// bind an ephemeral port.
func (s *Server) LocalAddr() net.Addr {
	return s.listener.Addr()
}

// IsAlive reports whether the serve goroutine is still running.
func (s *Server) IsAlive() bool {
	return atomic.LoadInt32(&s.alive) == 1
}

// Close stops accepting new connections and shuts down in-flight calls.
func (s *Server) Close() error {
	err := s.httpServer.Close()
	<-s.done
	return err
}

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

// Command grpc-server runs the interop TestService behind the gRPC/HTTP2
// dispatch core, for interop testing and manual exercising of the bridge.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	grpcsrv "github.com/shaneutt/grpc-go"
	"github.com/shaneutt/grpc-go/interop"
)

func main() {
	addr := flag.String("addr", ":10000", "address to bind")
	poolSize := flag.Int64("pool-size", 0, "pooled executor size; 0 runs calls inline")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger, err := grpcsrv.NewLogger(*debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	opts := []grpcsrv.ServerOption{grpcsrv.WithLogger(logger)}
	if *poolSize > 0 {
		opts = append(opts, grpcsrv.WithPooledExecutor(*poolSize))
	}

	service := interop.NewServiceDefinition(interop.TestService{})
	srv, err := grpcsrv.NewServer(*addr, grpcsrv.Plain, grpcsrv.ServerConf{}, service, opts...)
	if err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
	logger.Info("grpc-server listening", zap.String("addr", srv.LocalAddr().String()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	if err := srv.Close(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}

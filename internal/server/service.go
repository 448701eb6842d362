// Package server exposes the compilation pipeline over gRPC and HTTP.
package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/receipts-compiler/internal/common"
	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
	"github.com/joseph-ayodele/receipts-compiler/internal/pipeline"
	"github.com/joseph-ayodele/receipts-compiler/internal/request"
)

// Runner executes one compilation.
type Runner interface {
	Run(ctx context.Context, req entity.CompilationRequest) pipeline.Result
}

// CompilationServer is the transport-neutral request handler shared by the
// gRPC service and the HTTP gateway.
type CompilationServer struct {
	runner Runner
	logger *slog.Logger
}

func NewCompilationServer(runner Runner, logger *slog.Logger) *CompilationServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompilationServer{runner: runner, logger: logger}
}

// Compile validates body, runs the pipeline and returns the handle or a
// kind-coded error.
func (s *CompilationServer) Compile(ctx context.Context, body []byte, token string) (*entity.RetrievalHandle, error) {
	log := common.LoggerFrom(ctx, s.logger)

	wire, err := request.Decode(body)
	if err != nil {
		log.Warn("server.compile.invalid_request", "error", err)
		return nil, err
	}
	req, err := wire.ToEntity(token)
	if err != nil {
		log.Warn("server.compile.invalid_request", "error", err)
		return nil, err
	}

	res := s.runner.Run(ctx, req)
	if !res.OK() {
		log.Info("server.compile.rejected", "run_id", res.RunID, "kind", res.Failure)
		return nil, common.NewKindError(res.Failure, "compilation failed", res.Err)
	}
	return res.Handle, nil
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) string {
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

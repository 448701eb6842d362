package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"github.com/joseph-ayodele/receipts-compiler/internal/common"
	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
)

const (
	ServiceName           = "receipts.v1.CompilationService"
	CompileReceiptsMethod = "/" + ServiceName + "/CompileReceipts"
)

// CompilationHandler is implemented by GRPCService.
type CompilationHandler interface {
	CompileReceipts(ctx context.Context, req *json.RawMessage) (*entity.RetrievalHandle, error)
}

var compilationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CompilationHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CompileReceipts", Handler: compileReceiptsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "receipts/v1/compilation.proto",
}

func compileReceiptsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(json.RawMessage)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CompilationHandler).CompileReceipts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CompileReceiptsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CompilationHandler).CompileReceipts(ctx, req.(*json.RawMessage))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCService adapts CompilationServer to gRPC. The bearer token comes from
// the "authorization" metadata key, falling back to the body.
type GRPCService struct {
	svc    *CompilationServer
	logger *slog.Logger
}

func NewGRPCService(svc *CompilationServer, logger *slog.Logger) *GRPCService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCService{svc: svc, logger: logger}
}

func (s *GRPCService) CompileReceipts(ctx context.Context, req *json.RawMessage) (*entity.RetrievalHandle, error) {
	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("authorization"); len(vals) > 0 {
			token = bearerToken(vals[0])
		}
	}
	var body []byte
	if req != nil {
		body = *req
	}
	h, err := s.svc.Compile(ctx, body, token)
	if err != nil {
		return nil, common.StatusError(err)
	}
	return h, nil
}

// RegisterCompilationService registers svc and a health service on s. The
// returned health server starts out SERVING.
func RegisterCompilationService(s *grpc.Server, svc *GRPCService) *health.Server {
	s.RegisterService(&compilationServiceDesc, svc)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return healthServer
}

// RequestIDInterceptor tags each call with a request id and logs its outcome.
func RequestIDInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx = common.WithRequestID(ctx, uuid.NewString())
		resp, err := handler(ctx, req)
		log := common.LoggerFrom(ctx, logger)
		if err != nil {
			log.Warn("grpc.call", "method", info.FullMethod, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		} else {
			log.Info("grpc.call", "method", info.FullMethod, "elapsed_ms", time.Since(start).Milliseconds())
		}
		return resp, err
	}
}

package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	agentapiv1 "github.com/alphabot-community/alphabot-agent/api/agentapi/v1"
	"github.com/alphabot-community/alphabot-agent/pkg/agent"
	"github.com/alphabot-community/alphabot-agent/pkg/events"
	"github.com/alphabot-community/alphabot-agent/pkg/log"
	grpczap "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sierrasoftworks/humane-errors-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const shutdownTimeout = 5 * time.Second

// AgentGrpcService exposes an AlphaBotAgent over gRPC and serves the prometheus metrics over HTTP.
type AgentGrpcService struct {
	agentapiv1.UnimplementedAgentServiceServer
	agent       agent.AlphaBotAgent
	listenAddr  string
	listenMode  string
	metricsAddr string

	server  *grpc.Server
	metrics *http.Server

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewGrpcApiServer creates the gRPC and metrics servers. An empty address disables a server.
func NewGrpcApiServer(ctx context.Context, options ...GrpcApiServiceOption) *AgentGrpcService {
	service := &AgentGrpcService{
		listenMode: "tcp",
		stopped:    make(chan struct{}),
	}

	for _, option := range options {
		option(service)
	}

	// Add Logging Middleware
	logger := log.InterceptorLogger(log.FromContext(ctx).Logger)
	grpcOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpczap.UnaryServerInterceptor(logger)),
		grpc.ChainStreamInterceptor(grpczap.StreamServerInterceptor(logger)),
	}

	service.server = grpc.NewServer(grpcOpts...)
	agentapiv1.RegisterAgentServiceServer(service.server, service)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	service.metrics = &http.Server{
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	return service
}

func (s *AgentGrpcService) ServeAsync(ctx context.Context, cancel context.CancelCauseFunc) {
	go func() {
		err := s.Serve(ctx)
		if err != nil {
			log.FromContext(ctx).Error("Failed to start grpc server",
				zap.Error(err),
				zap.String("cause", err.Cause().Error()),
				zap.Strings("advice", err.Advice()),
			)

			cancel(err.Cause())
		}
	}()
}

// Serve blocks until ctx is done, GracefulStop is called or a server fails.
func (s *AgentGrpcService) Serve(ctx context.Context) humane.Error {
	var grpcListen, metricsListen net.Listener
	var err error

	if s.listenAddr != "" {
		grpcListen, err = net.Listen(s.listenMode, s.listenAddr)
		if err != nil {
			return humane.Wrap(err, "failed to create grpc listener",
				"ensure no other agent is running and "+s.listenAddr+" is not bound by another process",
				"change listen.api in the configuration",
			)
		}
	}

	if s.metricsAddr != "" {
		metricsListen, err = net.Listen("tcp", s.metricsAddr)
		if err != nil {
			if grpcListen != nil {
				_ = grpcListen.Close()
			}
			return humane.Wrap(err, "failed to create metrics listener",
				"ensure "+s.metricsAddr+" is not bound by another process",
				"change listen.metrics in the configuration",
			)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	if grpcListen != nil {
		group.Go(func() error {
			log.FromContext(ctx).Info("Starting grpc server", zap.String("address", s.listenAddr), zap.String("mode", s.listenMode))
			if err := s.server.Serve(grpcListen); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
	}
	if metricsListen != nil {
		group.Go(func() error {
			log.FromContext(ctx).Info("Starting metrics server", zap.String("address", s.metricsAddr))
			if err := s.metrics.Serve(metricsListen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	group.Go(func() error {
		select {
		case <-ctx.Done():
		case <-s.stopped:
		}
		return s.GracefulStop(context.Background())
	})

	if err := group.Wait(); err != nil {
		return humane.Wrap(err, "failed to serve the agent api",
			"ensure the gRPC server you are trying to serve to is not already running and the address is not bound by another process",
		)
	}
	return nil
}

// GracefulStop lets in-flight calls finish before closing both servers. Calls
// still running after the shutdown timeout are cut off.
func (s *AgentGrpcService) GracefulStop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopped) })

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	}

	return s.metrics.Shutdown(ctx)
}

// EmitEvent queues an event on the agent runtime
func (s *AgentGrpcService) EmitEvent(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	raw, err := agentapiv1.StructJSON(req)
	if err != nil {
		return nil, agentapiv1.StatusError(codes.InvalidArgument, err)
	}

	event, err := events.Decode(raw)
	if err != nil {
		return nil, agentapiv1.StatusError(codes.InvalidArgument, err)
	}

	if err := s.agent.EmitEvent(ctx, event); err != nil {
		return nil, agentapiv1.StatusError(codes.Aborted, err)
	}
	return &emptypb.Empty{}, nil
}

// GetStatus reports the current state of the robot
func (s *AgentGrpcService) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	status, err := s.agent.Status(ctx)
	if err != nil {
		return nil, agentapiv1.StatusError(codes.Internal, err)
	}

	resp, err := agentapiv1.ToStruct(status)
	if err != nil {
		return nil, agentapiv1.StatusError(codes.Internal, err)
	}
	return resp, nil
}

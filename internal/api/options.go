package api

import "github.com/alphabot-community/alphabot-agent/pkg/agent"

type GrpcApiServiceOption func(*AgentGrpcService)

func WithAlphaBotAgent(agent agent.AlphaBotAgent) GrpcApiServiceOption {
	return func(service *AgentGrpcService) {
		service.agent = agent
	}
}

func WithListenAddr(server string) GrpcApiServiceOption {
	return func(service *AgentGrpcService) {
		service.listenAddr = server
	}
}

// WithListenMode selects the network of the gRPC listener, "tcp" or "unix".
func WithListenMode(mode string) GrpcApiServiceOption {
	return func(service *AgentGrpcService) {
		if mode != "" {
			service.listenMode = mode
		}
	}
}

func WithUnixSocket() GrpcApiServiceOption {
	return WithListenMode("unix")
}

func WithMetricsAddr(addr string) GrpcApiServiceOption {
	return func(service *AgentGrpcService) {
		service.metricsAddr = addr
	}
}

package api_test

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	agentapiv1 "github.com/alphabot-community/alphabot-agent/api/agentapi/v1"
	"github.com/alphabot-community/alphabot-agent/internal/api"
	"github.com/alphabot-community/alphabot-agent/pkg/agent"
	"github.com/alphabot-community/alphabot-agent/pkg/events"
	"github.com/sierrasoftworks/humane-errors-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeAgent struct {
	mu      sync.Mutex
	events  []events.Event
	emitErr error
}

func (f *fakeAgent) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeAgent) RunAsync(context.Context, context.CancelCauseFunc) {}

func (f *fakeAgent) GracefulStop(context.Context) error { return nil }

func (f *fakeAgent) EmitEvent(_ context.Context, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAgent) Status(context.Context) (agent.Status, error) {
	return agent.Status{Platform: "simulated", Direction: "stop", Servos: map[string]uint16{"yaw": 60}}, nil
}

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	msg, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return msg
}

func TestApi_EmitEvent(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		fields map[string]any
		code   codes.Code
	}{
		{"move", map[string]any{"type": "move", "direction": "cw"}, codes.OK},
		{"halt", map[string]any{"type": "halt"}, codes.OK},
		{"missing direction", map[string]any{"type": "move"}, codes.InvalidArgument},
		{"unknown type", map[string]any{"type": "dance"}, codes.InvalidArgument},
		{"percent out of range", map[string]any{"type": "servo", "servo": "yaw", "percent": 150}, codes.InvalidArgument},
		{"empty is a noop", nil, codes.OK},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fake := &fakeAgent{}
			service := api.NewGrpcApiServer(context.Background(), api.WithAlphaBotAgent(fake))

			_, err := service.EmitEvent(context.Background(), mustStruct(t, tc.fields))
			assert.Equal(t, tc.code, status.Code(err))
			if tc.code == codes.OK {
				assert.Len(t, fake.events, 1)
			} else {
				assert.Empty(t, fake.events)
			}
		})
	}
}

func TestApi_EmitEventDecodesFields(t *testing.T) {
	t.Parallel()

	fake := &fakeAgent{}
	service := api.NewGrpcApiServer(context.Background(), api.WithAlphaBotAgent(fake))

	req := mustStruct(t, map[string]any{"type": "servo", "servo": "yaw", "percent": 40})
	_, err := service.EmitEvent(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, fake.events, 1)
	assert.Equal(t, events.ServoEvent, fake.events[0].Type)
	assert.Equal(t, "yaw", fake.events[0].Servo)
}

func TestApi_EmitFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeAgent{emitErr: humane.New("agent is shutting down", "wait for the agent to restart")}
	service := api.NewGrpcApiServer(context.Background(), api.WithAlphaBotAgent(fake))

	_, err := service.EmitEvent(context.Background(), mustStruct(t, map[string]any{"type": "halt"}))
	require.Error(t, err)
	assert.Equal(t, codes.Aborted, status.Code(err))
	assert.Equal(t, []string{"wait for the agent to restart"}, agentapiv1.Advice(err))
}

func TestApi_GetStatus(t *testing.T) {
	t.Parallel()

	service := api.NewGrpcApiServer(context.Background(), api.WithAlphaBotAgent(&fakeAgent{}))
	resp, err := service.GetStatus(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)

	var st agent.Status
	require.NoError(t, agentapiv1.FromStruct(resp, &st))
	assert.Equal(t, "simulated", st.Platform)
	assert.Equal(t, uint16(60), st.Servos["yaw"])
	assert.Nil(t, st.Temperature)
}

func TestApi_ServeAndStop(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		options func(t *testing.T) []api.GrpcApiServiceOption
	}{
		{"tcp", func(*testing.T) []api.GrpcApiServiceOption {
			return []api.GrpcApiServiceOption{api.WithListenAddr("127.0.0.1:0"), api.WithMetricsAddr("127.0.0.1:0")}
		}},
		{"unix", func(t *testing.T) []api.GrpcApiServiceOption {
			return []api.GrpcApiServiceOption{api.WithListenAddr(filepath.Join(t.TempDir(), "agent.sock")), api.WithUnixSocket()}
		}},
		{"disabled", func(*testing.T) []api.GrpcApiServiceOption { return nil }},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			options := append([]api.GrpcApiServiceOption{api.WithAlphaBotAgent(&fakeAgent{})}, tc.options(t)...)
			service := api.NewGrpcApiServer(context.Background(), options...)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				if err := service.Serve(ctx); err != nil {
					done <- err
					return
				}
				done <- nil
			}()

			cancel()
			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("server did not stop")
			}
		})
	}
}

func TestApi_GracefulStopEndsServe(t *testing.T) {
	t.Parallel()

	service := api.NewGrpcApiServer(context.Background(),
		api.WithAlphaBotAgent(&fakeAgent{}),
		api.WithListenAddr("127.0.0.1:0"),
	)

	done := make(chan error, 1)
	go func() {
		if err := service.Serve(context.Background()); err != nil {
			done <- err
			return
		}
		done <- nil
	}()

	require.NoError(t, service.GracefulStop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestApi_ServeListenFailure(t *testing.T) {
	t.Parallel()

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = busy.Close() })

	testCases := []struct {
		name    string
		options []api.GrpcApiServiceOption
	}{
		{"invalid api address", []api.GrpcApiServiceOption{api.WithListenAddr("256.0.0.1:1")}},
		{"metrics address in use", []api.GrpcApiServiceOption{
			api.WithListenAddr("127.0.0.1:0"),
			api.WithMetricsAddr(busy.Addr().String()),
		}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			service := api.NewGrpcApiServer(context.Background(), tc.options...)
			err := service.Serve(context.Background())
			require.Error(t, err)
			assert.NotEmpty(t, err.Advice())
			assert.False(t, errors.Is(err, context.Canceled))
		})
	}
}

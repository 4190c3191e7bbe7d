package agent

import (
	"context"
	"time"

	agentapiv1 "github.com/alphabot-community/alphabot-agent/api/agentapi/v1"
	"github.com/alphabot-community/alphabot-agent/pkg/events"
	"github.com/sierrasoftworks/humane-errors-go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

// callTimeout bounds every call to the agent.
const callTimeout = 5 * time.Second

// Client talks to a running agent over its gRPC API.
type Client struct {
	conn   *grpc.ClientConn
	client agentapiv1.AgentServiceClient
}

// NewClient targets the agent at addr, either "host:port" or a gRPC target
// such as "unix:///run/alphabot.sock". No connection is made until the first call.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, humane.Wrap(err, "invalid agent address "+addr,
			"pass --addr as host:port or unix:///path/to/socket",
		)
	}

	return &Client{
		conn:   conn,
		client: agentapiv1.NewAgentServiceClient(conn),
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) GetStatus(ctx context.Context) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := c.client.GetStatus(ctx, &emptypb.Empty{})
	if err != nil {
		return Status{}, callError(err)
	}

	var st Status
	if err := agentapiv1.FromStruct(resp, &st); err != nil {
		return Status{}, humane.Wrap(err, "failed to decode the agent status",
			"ensure alphabot and the agent run the same version",
		)
	}
	return st, nil
}

func (c *Client) EmitEvent(ctx context.Context, event events.Event) error {
	req, err := agentapiv1.ToStruct(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := c.client.EmitEvent(ctx, req); err != nil {
		return callError(err)
	}
	return nil
}

func callError(err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return humane.Wrap(err, "failed to reach the alphabot agent",
			"ensure the agent is running (alphabot serve) and --addr matches listen.api",
		)
	}
	return agentapiv1.FromStatusError(err)
}

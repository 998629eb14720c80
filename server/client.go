package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls a remote EvaluationService over gRPC.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target ("host:port") without transport security.
// The connection is established lazily on the first call.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Evaluate compiles and runs source on the server.
func (c *Client) Evaluate(ctx context.Context, source string) (float64, error) {
	out := new(wrapperspb.DoubleValue)
	if err := c.conn.Invoke(ctx, EvaluateProcedure, wrapperspb.String(source), out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

// Compile returns the encoded chunk for source.
func (c *Client) Compile(ctx context.Context, source string) ([]byte, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, CompileProcedure, wrapperspb.String(source), out); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

// Execute runs an encoded chunk on the server.
func (c *Client) Execute(ctx context.Context, chunk []byte) (float64, error) {
	out := new(wrapperspb.DoubleValue)
	if err := c.conn.Invoke(ctx, ExecuteProcedure, wrapperspb.Bytes(chunk), out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

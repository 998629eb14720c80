package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/tally/compiler"
	"github.com/chazu/tally/history"
	"github.com/chazu/tally/pkg/bytecode"
)

const (
	// EvaluationServiceName is the fully-qualified name of the service.
	EvaluationServiceName = "tally.v1.EvaluationService"

	EvaluateProcedure = "/" + EvaluationServiceName + "/Evaluate"
	CompileProcedure  = "/" + EvaluationServiceName + "/Compile"
	ExecuteProcedure  = "/" + EvaluationServiceName + "/Execute"
)

// EvalService implements tally.v1.EvaluationService. Requests and
// responses are protobuf wrapper messages.
type EvalService struct {
	pool    *Pool
	history *history.Store
}

// NewEvalService creates an EvalService that runs chunks on pool and,
// when store is non-nil, records each evaluation in it.
func NewEvalService(pool *Pool, store *history.Store) *EvalService {
	return &EvalService{
		pool:    pool,
		history: store,
	}
}

// Evaluate compiles and executes an expression. Empty or blank source
// fails to compile like any other bad input and is recorded as such.
func (s *EvalService) Evaluate(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.DoubleValue], error) {
	source := req.Msg.GetValue()

	chunk, err := compiler.Compile(source)
	if err != nil {
		s.record(ctx, source, bytecode.Value{}, err)
		return nil, toConnectError(err)
	}

	result, err := s.pool.Run(ctx, chunk)
	s.record(ctx, source, result, err)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(wrapperspb.Double(result.AsNumber())), nil
}

// Compile compiles an expression and returns the encoded chunk.
func (s *EvalService) Compile(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.BytesValue], error) {
	source := req.Msg.GetValue()

	chunk, err := compiler.Compile(source)
	if err != nil {
		return nil, toConnectError(err)
	}
	data, err := bytecode.MarshalChunk(chunk)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(wrapperspb.Bytes(data)), nil
}

// Execute decodes a chunk produced by Compile and runs it.
func (s *EvalService) Execute(
	ctx context.Context,
	req *connect.Request[wrapperspb.BytesValue],
) (*connect.Response[wrapperspb.DoubleValue], error) {
	chunk, err := bytecode.UnmarshalChunk(req.Msg.GetValue())
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	result, err := s.pool.Run(ctx, chunk)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(wrapperspb.Double(result.AsNumber())), nil
}

func (s *EvalService) record(ctx context.Context, source string, result bytecode.Value, err error) {
	if s.history == nil {
		return
	}
	entry := history.Entry{Source: source}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Result = result.String()
	}
	if _, recErr := s.history.Record(ctx, entry); recErr != nil {
		log.Warningf("recording evaluation: %s", recErr)
	}
}

// toConnectError maps pipeline errors onto Connect codes.
func toConnectError(err error) error {
	switch {
	case IsCompileError(err):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case IsRuntimeError(err):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, ErrPoolStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, fmt.Errorf("evaluate: %w", err))
	}
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	"go.uber.org/zap"

	"kside/internal/logging"
	"kside/internal/wire"
)

// Request is one decoded request on the worker side.
type Request struct {
	ID    string
	Op    wire.Op
	arg   wire.Raw
	codec wire.Codec
}

// HasArg reports whether the request carried a non-null argument.
func (r Request) HasArg() bool {
	return r.arg != nil
}

// Decode unmarshals the request argument into v.
func (r Request) Decode(v any) error {
	if err := wire.Decode(r.codec, r.arg, v); err != nil {
		return fmt.Errorf("decode %s argument: %w", r.Op, err)
	}
	return nil
}

// Service handles worker requests. A returned error becomes an
// errorMessage result; a nil result becomes an empty object.
type Service interface {
	Handle(ctx context.Context, req Request) (any, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, req Request) (any, error)

func (f ServiceFunc) Handle(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// Serve runs the worker side of the protocol on t: it announces readiness,
// then handles requests one at a time until the peer goes away or ctx ends.
func Serve(ctx context.Context, t Transport, codec wire.Codec, svc Service) error {
	if codec == nil {
		codec = wire.JSON
	}
	logger := logging.Named("worker")

	stop := context.AfterFunc(ctx, func() { _ = t.Close() })
	defer stop()

	ready, err := codec.EncodeReady()
	if err != nil {
		return fmt.Errorf("encode ready: %w", err)
	}
	if err := t.WriteFrame(ready); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("send ready: %w", err)
	}
	logger.Debug("worker ready", zap.String("codec", codec.Name()))

	for {
		data, err := t.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		in, err := codec.DecodeRequest(data)
		if err != nil {
			logger.Warn("failed to parse request", zap.Error(err))
			continue
		}
		if in.ID == "" {
			logger.Warn("request without id", zap.String("op", string(in.Op)))
			continue
		}
		req := Request{ID: in.ID, Op: in.Op, arg: in.Arg, codec: codec}
		result := handle(ctx, logger, svc, req)
		out, err := codec.EncodeResponse(req.ID, result)
		if err != nil {
			logger.Error("failed to encode response", zap.String("id", req.ID), zap.Error(err))
			out, err = codec.EncodeResponse(req.ID, wire.ErrorResult{ErrorMessage: err.Error()})
			if err != nil {
				return err
			}
		}
		if err := t.WriteFrame(out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("send response %q: %w", req.ID, err)
		}
	}
}

func handle(ctx context.Context, logger *zap.Logger, svc Service, req Request) (result any) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("request handler panicked",
				zap.String("op", string(req.Op)),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			result = wire.ErrorResult{ErrorMessage: fmt.Sprintf("internal error: %v", r)}
		}
	}()
	res, err := svc.Handle(ctx, req)
	if err != nil {
		logger.Debug("request failed", zap.String("op", string(req.Op)), zap.String("id", req.ID), zap.Error(err))
		return wire.ErrorResult{ErrorMessage: err.Error()}
	}
	if res == nil {
		return struct{}{}
	}
	return res
}

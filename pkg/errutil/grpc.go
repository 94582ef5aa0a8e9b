package errutil

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var grpcCodes = map[CoreStatus]codes.Code{
	StatusUnauthorized:         codes.Unauthenticated,
	StatusForbidden:            codes.PermissionDenied,
	StatusNotFound:             codes.NotFound,
	StatusTimeout:              codes.DeadlineExceeded,
	StatusGatewayTimeout:       codes.DeadlineExceeded,
	StatusUnprocessableEntity:  codes.FailedPrecondition,
	StatusUnsupportedMediaType: codes.InvalidArgument,
	StatusBadRequest:           codes.InvalidArgument,
	StatusValidationFailed:     codes.InvalidArgument,
	// conflicts come from concurrent verification or review writes
	StatusConflict:            codes.Aborted,
	StatusTooManyRequests:     codes.ResourceExhausted,
	StatusClientClosedRequest: codes.Canceled,
	StatusNotImplemented:      codes.Unimplemented,
	StatusBadGateway:          codes.Unavailable,
	StatusServiceUnavailable:  codes.Unavailable,
	StatusInternal:            codes.Internal,
}

// GRPCCode is the gRPC code a CoreStatus surfaces as.
func (s CoreStatus) GRPCCode() codes.Code {
	if c, ok := grpcCodes[s]; ok {
		return c
	}
	return codes.Unknown
}

// ToGRPCError turns an engine error into a gRPC status error. Errors that
// already carry a status pass through.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	var base BaseError
	if errors.As(err, &base) {
		return status.Error(base.Code.GRPCCode(), base.messageWithErr())
	}
	return status.Error(codes.Internal, err.Error())
}

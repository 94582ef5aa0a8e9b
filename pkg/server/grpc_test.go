package server

import (
	"context"
	"errors"
	"testing"

	"careerloop-engine/pkg/errutil"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorInterceptor(t *testing.T) {
	interceptor := ErrorInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/careerloop.v1.Engine/Verify"}

	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"not found", errutil.NotFound("user not found", errors.New("missing")), codes.NotFound},
		{"conflict", errutil.Conflict("user task changed during verification", nil), codes.Aborted},
		{"bad request", errutil.BadRequest("invalid period", nil), codes.InvalidArgument},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"plain", errors.New("boom"), codes.Internal},
		{"already a status", status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
				return nil, tt.err
			})
			require.Equal(t, tt.want, status.Code(err))
		})
	}

	resp, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
}

func TestGRPCCode_Unmapped(t *testing.T) {
	require.Equal(t, codes.Unknown, errutil.CoreStatus("teapot").GRPCCode())
	require.Equal(t, codes.Unknown, errutil.StatusUnknown.GRPCCode())
}

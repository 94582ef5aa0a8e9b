package profile

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"careerloop-engine/pkg/db/pagination"
	"careerloop-engine/pkg/errutil"
	"careerloop-engine/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeVerifier struct {
	verifyFn func(ctx context.Context, domain, code string) error
	calls    int
}

func (f *fakeVerifier) VerifyOwnership(ctx context.Context, domain, code string) error {
	f.calls++
	if f.verifyFn != nil {
		return f.verifyFn(ctx, domain, code)
	}
	return nil
}

func newTestService(t *testing.T, verifier *fakeVerifier) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, &Profile{})
	p := ServiceParams{DB: db, Node: testutil.NewNode(t)}
	if verifier != nil {
		p.Verifier = verifier
	}
	return NewService(p)
}

func TestService_CreateAndGet(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateParams{ID: "user-1", DisplayName: "Ari", Email: " Ari@Example.com "})
	require.NoError(t, err)
	require.Equal(t, "ari@example.com", created.Email)
	require.Len(t, created.VerificationCode, 16)

	got, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "Ari", got.DisplayName)

	_, err = svc.Create(ctx, CreateParams{ID: "user-1", DisplayName: "Again"})
	be, ok := errutil.As(err)
	require.True(t, ok)
	require.Equal(t, errutil.StatusConflict, be.Code)

	_, err = svc.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.Get(ctx, "")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_Page(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, CreateParams{ID: fmt.Sprintf("user-%d", i), DisplayName: "u"})
		require.NoError(t, err)
	}

	var seen []string
	cursor := ""
	for {
		rows, info, err := svc.Page(ctx, pagination.Pagination{Cursor: cursor, Limit: 2})
		require.NoError(t, err)
		for _, r := range rows {
			seen = append(seen, r.ID)
		}
		if !info.HasMore {
			break
		}
		cursor = info.NextCursor
	}
	require.Equal(t, []string{"user-0", "user-1", "user-2", "user-3", "user-4"}, seen)
}

func TestService_VerifyDomain(t *testing.T) {
	verifier := &fakeVerifier{}
	svc := newTestService(t, verifier)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateParams{ID: "user-1", DisplayName: "Ari", PortfolioDomain: "ari.dev"})
	require.NoError(t, err)

	verifier.verifyFn = func(_ context.Context, domain, code string) error {
		require.Equal(t, "ari.dev", domain)
		require.Equal(t, p.VerificationCode, code)
		return errors.New("no record")
	}
	_, err = svc.VerifyDomain(ctx, "user-1")
	be, ok := errutil.As(err)
	require.True(t, ok)
	require.Equal(t, errutil.StatusUnprocessableEntity, be.Code)

	verifier.verifyFn = nil
	verified, err := svc.VerifyDomain(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, verified.DomainVerified())

	// already verified profiles skip the lookup
	_, err = svc.VerifyDomain(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, verifier.calls)

	reset, err := svc.SetPortfolioDomain(ctx, "user-1", "ari.io")
	require.NoError(t, err)
	require.False(t, reset.DomainVerified())
	require.Equal(t, "ari.io", reset.PortfolioDomain)
}

package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"careerloop-engine/pkg/db/option"
	"careerloop-engine/pkg/db/pagination"
	"careerloop-engine/pkg/errutil"
	"careerloop-engine/pkg/repository"
	"careerloop-engine/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type repoMock[T any] struct {
	withTrxFn     func(tx *gorm.DB) repository.Repository[T]
	findFn        func(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	findOneFn     func(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	createFn      func(ctx context.Context, resource *T) error
	updateFn      func(ctx context.Context, resourceID string, resource any) error
	batchCreateFn func(ctx context.Context, resources []*T) error
	batchUpdateFn func(ctx context.Context, resources []*T) error
	countFn       func(ctx context.Context, query *T) (int64, error)
}

func (m *repoMock[T]) WithTrx(tx *gorm.DB) repository.Repository[T] {
	if m.withTrxFn != nil {
		return m.withTrxFn(tx)
	}
	return m
}

func (m *repoMock[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	if m.findFn != nil {
		return m.findFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	if m.findOneFn != nil {
		return m.findOneFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) Create(ctx context.Context, resource *T) error {
	if m.createFn != nil {
		return m.createFn(ctx, resource)
	}
	return nil
}

func (m *repoMock[T]) Update(ctx context.Context, resourceID string, resource any) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, resourceID, resource)
	}
	return nil
}

func (m *repoMock[T]) BatchCreate(ctx context.Context, resources []*T) error {
	if m.batchCreateFn != nil {
		return m.batchCreateFn(ctx, resources)
	}
	return nil
}

func (m *repoMock[T]) BatchUpdate(ctx context.Context, resources []*T) error {
	if m.batchUpdateFn != nil {
		return m.batchUpdateFn(ctx, resources)
	}
	return nil
}

func (m *repoMock[T]) Count(ctx context.Context, query *T) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, query)
	}
	return 0, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, Models()...)
	return NewService(ServiceParams{DB: db, Node: testutil.NewNode(t)})
}

func award(activity, date string, points int64) AwardParams {
	return AwardParams{
		UserID:       "user-1",
		ActivityID:   activity,
		ActivityDate: date,
		Points:       points,
		PeriodKey:    "2025-05",
		Description:  "verified " + activity,
	}
}

func TestNewService(t *testing.T) {
	svc := newTestService(t)

	require.NotNil(t, svc.ledger)
	require.NotNil(t, svc.balance)
}

func TestAward_IdempotentOnActivityKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	activity := ActivityID("linkedin.weekly-post", "2025-05")
	require.Equal(t, "task:linkedin.weekly-post:2025-05", activity)

	first, err := svc.Award(ctx, award(activity, "2025-01-29", 15))
	require.NoError(t, err)
	require.True(t, first.Awarded)
	require.Equal(t, GenesisHash, first.Entry.PreviousHash)
	require.EqualValues(t, 15, first.Balance)

	again, err := svc.Award(ctx, award(activity, "2025-01-29", 15))
	require.NoError(t, err)
	require.False(t, again.Awarded)
	require.Nil(t, again.Entry)

	ok, err := svc.HasEntry(ctx, "user-1", activity, "2025-01-29")
	require.NoError(t, err)
	require.True(t, ok)

	balance, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	require.EqualValues(t, 15, balance.Balance)

	// a different activity date is a distinct award
	other, err := svc.Award(ctx, award(activity, "2025-01-30", 15))
	require.NoError(t, err)
	require.True(t, other.Awarded)
	require.Equal(t, first.Entry.Hash, other.Entry.PreviousHash)
	require.EqualValues(t, 30, other.Balance)
}

func TestAward_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Award(ctx, AwardParams{UserID: "user-1", ActivityID: "a"})
	require.Error(t, err)

	_, err = svc.Award(ctx, award("a", "29-01-2025", 1))
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusBadRequest, be.Status())

	_, err = svc.Award(ctx, award("a", "2025-01-29", -1))
	require.Error(t, err)
}

func TestAwardTx_RollsBackWithCaller(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	boom := errors.New("status write failed")

	err := svc.db.Transaction(func(tx *gorm.DB) error {
		res, err := svc.AwardTx(ctx, tx, award("linkedin.weekly-post:2025-05", "2025-01-29", 15))
		require.NoError(t, err)
		require.True(t, res.Awarded)
		return boom
	})
	require.ErrorIs(t, err, boom)

	ok, err := svc.HasEntry(ctx, "user-1", "linkedin.weekly-post:2025-05", "")
	require.NoError(t, err)
	require.False(t, ok)
	balance, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	require.Zero(t, balance.Balance)

	err = svc.db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.AwardTx(ctx, tx, award("linkedin.weekly-post:2025-05", "2025-01-29", 15))
		return err
	})
	require.NoError(t, err)

	ok, err = svc.HasEntry(ctx, "user-1", "linkedin.weekly-post:2025-05", "")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = svc.HasEntry(ctx, "user-1", "linkedin.weekly-post:2025-05", "2025-01-30")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetBalance_NoAwards(t *testing.T) {
	svc := newTestService(t)

	balance, err := svc.GetBalance(context.Background(), "user-2")
	require.NoError(t, err)
	require.Zero(t, balance.Balance)
	require.Equal(t, "user-2", balance.UserID)
}

func TestListEntries_Pages(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, code := range []string{"a", "b", "c"} {
		_, err := svc.Award(ctx, award(ActivityID(code, "2025-05"), "2025-01-29", 5))
		require.NoError(t, err)
	}

	page, info, err := svc.ListEntries(ctx, "user-1", pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.True(t, info.HasMore)
	require.NotEmpty(t, info.NextCursor)

	rest, info, err := svc.ListEntries(ctx, "user-1", pagination.Pagination{Limit: 2, Cursor: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.False(t, info.HasMore)
	require.Empty(t, info.NextCursor)
}

func TestVerifyChain_Stored(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, code := range []string{"a", "b"} {
		_, err := svc.Award(ctx, award(ActivityID(code, "2025-05"), "2025-01-29", 5))
		require.NoError(t, err)
	}

	report, err := svc.VerifyChain(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, report.Valid)
	require.Equal(t, 2, report.Entries)
}

func TestVerifyChainValid(t *testing.T) {
	first := &Entry{
		ID:           "entry-1",
		UserID:       "user-1",
		ActivityID:   "task:a:2025-05",
		ActivityDate: "2025-01-29",
		Points:       100,
		PreviousHash: GenesisHash,
		CreatedAt:    time.Now(),
	}
	first.Hash = first.GenerateHash()

	second := &Entry{
		ID:           "entry-2",
		UserID:       "user-1",
		ActivityID:   "task:b:2025-05",
		ActivityDate: "2025-01-29",
		Points:       50,
		PreviousHash: first.Hash,
		CreatedAt:    time.Now().Add(time.Minute),
	}
	second.Hash = second.GenerateHash()

	svc := &Service{
		ledger: &repoMock[Entry]{
			findFn: func(ctx context.Context, _ *Entry, opts ...option.QueryOption) ([]*Entry, error) {
				return []*Entry{first, second}, nil
			},
		},
	}

	report, err := svc.VerifyChain(context.Background(), "user-1")
	require.NoError(t, err)
	require.True(t, report.Valid)
}

func TestVerifyChainInvalid(t *testing.T) {
	first := &Entry{
		ID:           "entry-1",
		UserID:       "user-1",
		ActivityID:   "task:a:2025-05",
		ActivityDate: "2025-01-29",
		Points:       100,
		PreviousHash: GenesisHash,
		CreatedAt:    time.Now(),
	}
	first.Hash = first.GenerateHash()

	second := &Entry{
		ID:           "entry-2",
		UserID:       "user-1",
		ActivityID:   "task:b:2025-05",
		ActivityDate: "2025-01-29",
		Points:       50,
		PreviousHash: first.Hash,
		Hash:         "invalid",
		CreatedAt:    time.Now().Add(time.Minute),
	}

	svc := &Service{
		ledger: &repoMock[Entry]{
			findFn: func(ctx context.Context, _ *Entry, opts ...option.QueryOption) ([]*Entry, error) {
				return []*Entry{first, second}, nil
			},
		},
	}

	report, err := svc.VerifyChain(context.Background(), "user-1")
	require.NoError(t, err)
	require.False(t, report.Valid)
	require.Equal(t, "entry-2", report.Broken)
}

func TestGetBalanceRepoError(t *testing.T) {
	svc := &Service{
		balance: &repoMock[Balance]{
			findOneFn: func(ctx context.Context, _ *Balance, opts ...option.QueryOption) (*Balance, error) {
				return nil, errors.New("db down")
			},
		},
	}

	_, err := svc.GetBalance(context.Background(), "user-1")
	require.EqualError(t, err, "db down")
}

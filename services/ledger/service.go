package ledger

import (
	"context"
	"encoding/json"
	"time"

	"careerloop-engine/pkg/db/option"
	"careerloop-engine/pkg/db/pagination"
	"careerloop-engine/pkg/errutil"
	"careerloop-engine/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	ledger  repository.Repository[Entry]
	balance repository.Repository[Balance]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		ledger:  repository.ProvideStore[Entry](p.DB),
		balance: repository.ProvideStore[Balance](p.DB),
	}
}

type AwardParams struct {
	UserID       string
	ActivityID   string
	ActivityDate string
	Points       int64
	UserTaskID   string
	PeriodKey    string
	Description  string
	Metadata     map[string]any
}

type AwardResult struct {
	// Awarded is false when the (user, activity, date) entry already existed.
	Awarded bool
	Entry   *Entry
	Balance int64
}

// Award appends a hash-chained entry and credits the user's balance in one
// transaction. A conflicting entry is a successful no-op.
func (s *Service) Award(ctx context.Context, p AwardParams) (*AwardResult, error) {
	var result *AwardResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.AwardTx(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AwardTx is Award inside the caller's transaction. The entry and the balance
// roll back with tx.
func (s *Service) AwardTx(ctx context.Context, tx *gorm.DB, p AwardParams) (*AwardResult, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("user_id", p.UserID),
		zap.String("activity_id", p.ActivityID),
		zap.String("activity_date", p.ActivityDate),
	)

	if p.UserID == "" || p.ActivityID == "" || p.ActivityDate == "" {
		return nil, errutil.BadRequest("user_id, activity_id and activity_date are required", nil)
	}
	if _, err := time.Parse(ActivityDateLayout, p.ActivityDate); err != nil {
		return nil, errutil.BadRequest("activity_date must be YYYY-MM-DD", err)
	}
	if p.Points < 0 {
		return nil, errutil.BadRequest("points must be >= 0", nil)
	}

	metaBytes, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, errutil.BadRequest("invalid metadata", err)
	}

	result, err := s.appendEntry(ctx, tx.Scopes(option.LockingUpdate), p, metaBytes)
	if err != nil {
		zapLog.Error("failed to award points", zap.Error(err))
		return nil, err
	}

	if result.Awarded {
		zapLog.Info("points awarded", zap.Int64("points", p.Points), zap.Int64("balance", result.Balance))
	} else {
		zapLog.Info("activity already awarded")
	}
	return result, nil
}

func (s *Service) appendEntry(ctx context.Context, tx *gorm.DB, p AwardParams, metadata []byte) (*AwardResult, error) {
	lastEntry, err := s.getLastEntry(ctx, tx, p.UserID)
	if err != nil {
		return nil, err
	}

	previousHash := GenesisHash
	if lastEntry != nil {
		previousHash = lastEntry.Hash
	}

	entry := &Entry{
		ID:           s.node.Generate().String(),
		UserID:       p.UserID,
		ActivityID:   p.ActivityID,
		ActivityDate: p.ActivityDate,
		Points:       p.Points,
		UserTaskID:   p.UserTaskID,
		PeriodKey:    p.PeriodKey,
		Description:  p.Description,
		PreviousHash: previousHash,
		Metadata:     datatypes.JSON(metadata),
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	entry.Hash = entry.GenerateHash()

	res := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "activity_id"}, {Name: "activity_date"}},
		DoNothing: true,
	}).Create(entry)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return &AwardResult{}, nil
	}

	balance, err := s.credit(ctx, tx, p.UserID, p.Points)
	if err != nil {
		return nil, err
	}
	return &AwardResult{Awarded: true, Entry: entry, Balance: balance}, nil
}

func (s *Service) getLastEntry(ctx context.Context, tx *gorm.DB, userID string) (*Entry, error) {
	return s.ledger.WithTrx(tx).FindOne(ctx, &Entry{UserID: userID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "id",
			OrderBy: "desc",
			Allow:   map[string]bool{"id": true},
		}),
		option.WithLockingUpdate(),
	)
}

func (s *Service) credit(ctx context.Context, tx *gorm.DB, userID string, points int64) (int64, error) {
	balanceTx := s.balance.WithTrx(tx)

	balance, err := balanceTx.FindOne(ctx, &Balance{UserID: userID})
	if err != nil {
		return 0, err
	}

	now := time.Now()
	if balance == nil {
		if err := balanceTx.Create(ctx, &Balance{
			ID: s.node.Generate().String(), UserID: userID,
			Balance: points, CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			return 0, err
		}
		return points, nil
	}

	updates := map[string]any{
		"balance":    gorm.Expr("balance + ?", points),
		"updated_at": now,
	}
	if err := balanceTx.Update(ctx, balance.ID, &updates); err != nil {
		return 0, err
	}
	return balance.Balance + points, nil
}

// GetBalance returns the user's running total; users without awards have zero.
func (s *Service) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	if userID == "" {
		return nil, errutil.BadRequest("user_id is required", nil)
	}
	balance, err := s.balance.FindOne(ctx, &Balance{UserID: userID})
	if err != nil {
		zap.L().Error("failed to query balance", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	if balance == nil {
		return &Balance{UserID: userID}, nil
	}
	return balance, nil
}

// HasEntry reports whether the activity was already awarded on the date. An
// empty date matches any day.
func (s *Service) HasEntry(ctx context.Context, userID, activityID, activityDate string) (bool, error) {
	if userID == "" || activityID == "" {
		return false, nil
	}
	n, err := s.ledger.Count(ctx, &Entry{UserID: userID, ActivityID: activityID, ActivityDate: activityDate})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) ListEntries(ctx context.Context, userID string, page pagination.Pagination) ([]*Entry, *pagination.PageInfo, error) {
	if userID == "" {
		return nil, nil, errutil.BadRequest("user_id is required", nil)
	}
	page.Limit = min(max(page.Limit, 1), 250)

	entries, err := s.ledger.Find(ctx, &Entry{UserID: userID}, option.ApplyPagination(page))
	if err != nil {
		zap.L().Error("failed to query list entries", zap.String("user_id", userID), zap.Error(err))
		return nil, nil, err
	}

	info := pagination.BuildCursorPageInfo(entries, int32(page.Limit), func(e *Entry) string {
		cursor, _ := pagination.EncodeCursor(pagination.Cursor{ID: e.ID})
		return cursor
	})
	if len(entries) > page.Limit {
		entries = entries[:page.Limit]
	}
	if !info.HasMore {
		info.NextCursor = ""
	}
	return entries, info, nil
}

type ChainReport struct {
	Valid   bool   `json:"valid"`
	Entries int    `json:"entries"`
	Broken  string `json:"broken_entry_id,omitempty"`
}

// VerifyChain recomputes every hash of the user's entries in insertion order.
func (s *Service) VerifyChain(ctx context.Context, userID string) (*ChainReport, error) {
	if userID == "" {
		return nil, errutil.BadRequest("user_id is required", nil)
	}

	entries, err := s.ledger.Find(ctx, &Entry{UserID: userID}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "id",
		OrderBy: "asc",
		Allow:   map[string]bool{"id": true},
	}))
	if err != nil {
		zap.L().Error("failed to query Find entries", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	report := &ChainReport{Valid: true, Entries: len(entries)}
	lastHash := GenesisHash
	for _, entry := range entries {
		if entry.Hash != entry.GenerateHash() || entry.PreviousHash != lastHash {
			report.Valid = false
			report.Broken = entry.ID
			break
		}
		lastHash = entry.Hash
	}
	return report, nil
}

package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"careerloop-engine/pkg/db/option"
	"careerloop-engine/pkg/errutil"
	"careerloop-engine/pkg/repository"
	"careerloop-engine/services/verification"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SourceAPI is the source of signals posted without a recognised key prefix.
const SourceAPI = "api"

var ErrInvalidSignal = errors.New("invalid signal")

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	signals repository.Repository[Signal]
}

type Params struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		signals: repository.ProvideStore[Signal](p.DB),
	}
}

type AppendParams struct {
	UserID     string         `json:"user_id" binding:"required"`
	Kind       string         `json:"kind" binding:"required"`
	Actor      string         `json:"actor"`
	Source     string         `json:"source"`
	ExternalID string         `json:"external_id"`
	HappenedAt time.Time      `json:"happened_at" binding:"required"`
	Metadata   map[string]any `json:"metadata"`
}

func (p AppendParams) validate() error {
	var details []errutil.Detail
	if strings.TrimSpace(p.UserID) == "" {
		details = append(details, errutil.Detail{Field: "user_id", Message: "is required"})
	}
	if strings.TrimSpace(p.Kind) == "" {
		details = append(details, errutil.Detail{Field: "kind", Message: "is required"})
	}
	if p.HappenedAt.IsZero() {
		details = append(details, errutil.Detail{Field: "happened_at", Message: "is required"})
	}
	if len(details) > 0 {
		return errutil.ValidationFailed("invalid signal", ErrInvalidSignal, errutil.WithDetails(details...))
	}
	return nil
}

// Append inserts a signal. A retry carrying an already stored
// (user, source, external_id) returns the stored row with created=false.
func (s *Service) Append(ctx context.Context, p AppendParams) (*Signal, bool, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("user_id", p.UserID),
		zap.String("kind", p.Kind),
	)

	if err := p.validate(); err != nil {
		return nil, false, err
	}

	sig, err := s.build(p)
	if err != nil {
		return nil, false, err
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "source"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(sig)
	if res.Error != nil {
		zapLog.Error("failed to append signal", zap.Error(res.Error))
		return nil, false, fmt.Errorf("append signal: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		existing, err := s.signals.FindOne(ctx, &Signal{UserID: sig.UserID, Source: sig.Source, ExternalID: sig.ExternalID})
		if err != nil {
			return nil, false, err
		}
		zapLog.Debug("duplicate signal ignored", zap.String("external_id", p.ExternalID))
		return existing, false, nil
	}

	return sig, true, nil
}

func (s *Service) build(p AppendParams) (*Signal, error) {
	source := strings.TrimSpace(p.Source)
	if source == "" {
		source = SourceAPI
	}

	var externalID *string
	if id := strings.TrimSpace(p.ExternalID); id != "" {
		externalID = &id
	}

	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, errutil.BadRequest("invalid metadata", err)
	}

	return &Signal{
		ID:         s.node.Generate().String(),
		UserID:     strings.TrimSpace(p.UserID),
		Kind:       strings.TrimSpace(p.Kind),
		Actor:      strings.TrimSpace(p.Actor),
		Source:     source,
		ExternalID: externalID,
		HappenedAt: p.HappenedAt.UTC(),
		Metadata:   datatypes.JSON(meta),
	}, nil
}

type BatchResult struct {
	Inserted   int      `json:"inserted"`
	Duplicates int      `json:"duplicates"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// AppendBatch appends every signal it can; a bad item is counted and skipped.
func (s *Service) AppendBatch(ctx context.Context, items []AppendParams) BatchResult {
	var out BatchResult
	for i, p := range items {
		_, created, err := s.Append(ctx, p)
		switch {
		case err != nil:
			out.Failed++
			out.Errors = append(out.Errors, fmt.Sprintf("item %d: %v", i, err))
		case created:
			out.Inserted++
		default:
			out.Duplicates++
		}
	}
	return out
}

// ListInWindow returns the user's signals with start <= happened_at <= end,
// oldest first, optionally restricted to kinds.
func (s *Service) ListInWindow(ctx context.Context, userID string, w verification.Window, kinds ...string) ([]*Signal, error) {
	if userID == "" {
		return nil, errutil.BadRequest("user_id is required", nil)
	}

	opts := []option.QueryOption{
		option.ApplyOperator(
			option.Condition{Field: "happened_at", Operator: option.GTE, Value: w.Start.UTC()},
			option.Condition{Field: "happened_at", Operator: option.LTE, Value: w.End.UTC()},
		),
		option.WithSortBy(option.QuerySortBy{SortBy: "happened_at", OrderBy: "asc", Allow: map[string]bool{"happened_at": true}}),
	}
	if len(kinds) > 0 {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "kind", Operator: option.IN, Value: kinds}))
	}

	return s.signals.Find(ctx, &Signal{UserID: userID}, opts...)
}

// ForVerification loads the window's signals in engine form.
func (s *Service) ForVerification(ctx context.Context, userID string, w verification.Window) ([]verification.Signal, error) {
	rows, err := s.ListInWindow(ctx, userID, w)
	if err != nil {
		return nil, err
	}
	out := make([]verification.Signal, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToVerification())
	}
	return out, nil
}

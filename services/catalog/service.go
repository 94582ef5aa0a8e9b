package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"careerloop-engine/pkg/db/option"
	"careerloop-engine/pkg/errutil"
	"careerloop-engine/pkg/rediskey"
	"careerloop-engine/pkg/repository"
	"careerloop-engine/services/verification"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDefinitionNotFound = errors.New("task definition not found")

const defaultCacheTTL = time.Minute

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	rdb     *redis.Client
	bonuses *verification.BonusEvaluator

	definitions repository.Repository[TaskDefinition]

	mu       sync.RWMutex
	active   []TaskDefinition
	loadedAt time.Time
	version  string
	ttl      time.Duration
	group    singleflight.Group
}

type ServiceParams struct {
	fx.In

	DB      *gorm.DB
	Node    *snowflake.Node
	Bonuses *verification.BonusEvaluator
	Redis   *redis.Client `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:          p.DB,
		node:        p.Node,
		rdb:         p.Redis,
		bonuses:     p.Bonuses,
		definitions: repository.ProvideStore[TaskDefinition](p.DB),
		ttl:         defaultCacheTTL,
	}
}

// DefinitionInput carries the editable fields of a task definition.
type DefinitionInput struct {
	Code                  string                      `json:"code"`
	Vertical              Vertical                    `json:"vertical" binding:"required"`
	Title                 string                      `json:"title" binding:"required"`
	Description           string                      `json:"description"`
	AcceptedEvidenceKinds []verification.EvidenceKind `json:"accepted_evidence_kinds" binding:"required,min=1"`
	BasePoints            int                         `json:"base_points" binding:"gte=0"`
	Bonuses               []verification.Bonus        `json:"bonus_rules"`
	DayOffset             int                         `json:"day_offset" binding:"gte=0,lte=6"`
	Active                *bool                       `json:"active"`
}

func (in DefinitionInput) code() string {
	if c := strings.TrimSpace(in.Code); c != "" {
		return c
	}
	return fmt.Sprintf("%s.%s", in.Vertical, slug.Make(in.Title))
}

func (s *Service) validate(in DefinitionInput) error {
	var details []errutil.Detail
	if !in.Vertical.Valid() {
		details = append(details, errutil.Detail{Field: "vertical", Message: "must be one of linkedin, github, career, jobhunt"})
	}
	if strings.TrimSpace(in.Title) == "" {
		details = append(details, errutil.Detail{Field: "title", Message: "is required"})
	}
	if in.BasePoints < 0 {
		details = append(details, errutil.Detail{Field: "base_points", Message: "must be >= 0"})
	}
	if in.DayOffset < 0 || in.DayOffset > 6 {
		details = append(details, errutil.Detail{Field: "day_offset", Message: "must be between 0 and 6"})
	}
	if len(in.AcceptedEvidenceKinds) == 0 {
		details = append(details, errutil.Detail{Field: "accepted_evidence_kinds", Message: "at least one kind is required"})
	}
	for _, k := range in.AcceptedEvidenceKinds {
		if !k.Valid() {
			details = append(details, errutil.Detail{Field: "accepted_evidence_kinds", Message: fmt.Sprintf("unknown kind %q", k)})
		}
	}
	for i, b := range in.Bonuses {
		field := fmt.Sprintf("bonus_rules[%d]", i)
		if b.Points < 0 {
			details = append(details, errutil.Detail{Field: field, Message: "points must be >= 0"})
		}
		if s.bonuses != nil {
			if err := s.bonuses.Validate(b.Expression); err != nil {
				details = append(details, errutil.Detail{Field: field, Message: err.Error()})
			}
		}
	}

	if len(details) > 0 {
		return errutil.ValidationFailed("invalid task definition", nil, errutil.WithDetails(details...))
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in DefinitionInput) (*TaskDefinition, error) {
	zapLog := zap.L().With(zap.String("vertical", string(in.Vertical)), zap.String("title", in.Title))

	if err := s.validate(in); err != nil {
		return nil, err
	}

	code := in.code()
	existing, err := s.definitions.FindOne(ctx, &TaskDefinition{Code: code})
	if err != nil {
		zapLog.Error("failed to query task definition by code", zap.Error(err))
		return nil, err
	}
	if existing != nil {
		return nil, errutil.Conflict(fmt.Sprintf("task definition %s already exists", code), nil)
	}

	bonuses, err := encodeBonuses(in.Bonuses)
	if err != nil {
		return nil, errutil.BadRequest("invalid bonus rules", err)
	}

	def := &TaskDefinition{
		ID:                    s.node.Generate().String(),
		Code:                  code,
		Vertical:              in.Vertical,
		Title:                 in.Title,
		Description:           in.Description,
		AcceptedEvidenceKinds: kindsToArray(in.AcceptedEvidenceKinds),
		BasePoints:            in.BasePoints,
		BonusRules:            bonuses,
		DayOffset:             in.DayOffset,
		Active:                in.Active == nil || *in.Active,
	}
	if err := s.definitions.Create(ctx, def); err != nil {
		zapLog.Error("failed to create task definition", zap.Error(err))
		return nil, err
	}

	s.Invalidate(ctx)
	zapLog.Info("task definition created", zap.String("code", code))
	return def, nil
}

// Update replaces the editable fields. The code is immutable once created
// because it drives rule dispatch and ledger activity ids.
func (s *Service) Update(ctx context.Context, id string, in DefinitionInput) (*TaskDefinition, error) {
	def, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	in.Code = def.Code
	if err := s.validate(in); err != nil {
		return nil, err
	}

	bonuses, err := encodeBonuses(in.Bonuses)
	if err != nil {
		return nil, errutil.BadRequest("invalid bonus rules", err)
	}

	active := def.Active
	if in.Active != nil {
		active = *in.Active
	}

	updates := map[string]any{
		"vertical":                in.Vertical,
		"title":                   in.Title,
		"description":             in.Description,
		"accepted_evidence_kinds": kindsToArray(in.AcceptedEvidenceKinds),
		"base_points":             in.BasePoints,
		"bonus_rules":             bonuses,
		"day_offset":              in.DayOffset,
		"active":                  active,
		"updated_at":              time.Now(),
	}
	if err := s.definitions.Update(ctx, id, &updates); err != nil {
		zap.L().Error("failed to update task definition", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.Invalidate(ctx)
	return s.Get(ctx, id)
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	updates := map[string]any{"active": false, "updated_at": time.Now()}
	if err := s.definitions.Update(ctx, id, &updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errutil.NotFound("task definition not found", ErrDefinitionNotFound)
		}
		return err
	}
	s.Invalidate(ctx)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*TaskDefinition, error) {
	def, err := s.definitions.FindOne(ctx, &TaskDefinition{ID: id})
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, errutil.NotFound("task definition not found", ErrDefinitionNotFound)
	}
	return def, nil
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]*TaskDefinition, error) {
	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{SortBy: "day_offset", OrderBy: "asc", Allow: map[string]bool{"day_offset": true}}),
	}
	if !includeInactive {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "active", Operator: option.EQ, Value: true}))
	}
	return s.definitions.Find(ctx, nil, opts...)
}

// ActiveDefinitions returns the active catalog ordered by day offset and code.
// Results are cached in-process and refreshed when the TTL lapses or another
// instance bumps the shared catalog version.
func (s *Service) ActiveDefinitions(ctx context.Context) ([]TaskDefinition, error) {
	version := s.remoteVersion(ctx)

	s.mu.RLock()
	if s.active != nil && s.version == version && time.Since(s.loadedAt) < s.ttl {
		out := append([]TaskDefinition(nil), s.active...)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.group.Do("active", func() (any, error) {
		var defs []TaskDefinition
		if err := s.db.WithContext(ctx).
			Where("active = ?", true).
			Order("day_offset ASC").Order("code ASC").
			Find(&defs).Error; err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.active = defs
		s.loadedAt = time.Now()
		s.version = version
		s.mu.Unlock()
		return defs, nil
	})
	if err != nil {
		zap.L().Error("failed to load active task definitions", zap.Error(err))
		return nil, err
	}
	return append([]TaskDefinition(nil), v.([]TaskDefinition)...), nil
}

// Invalidate drops the local cache and bumps the shared version so other
// instances reload too.
func (s *Service) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()

	if s.rdb == nil {
		return
	}
	if err := s.rdb.Incr(ctx, rediskey.BuildCatalogVersionKey()).Err(); err != nil {
		zap.L().Warn("failed to bump catalog version", zap.Error(err))
	}
}

func (s *Service) remoteVersion(ctx context.Context) string {
	if s.rdb == nil {
		return ""
	}
	v, err := s.rdb.Get(ctx, rediskey.BuildCatalogVersionKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		zap.L().Warn("failed to read catalog version", zap.Error(err))
	}
	return v
}

// Upsert creates or refreshes a definition keyed by its code.
func (s *Service) Upsert(ctx context.Context, in DefinitionInput) (*TaskDefinition, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}
	bonuses, err := encodeBonuses(in.Bonuses)
	if err != nil {
		return nil, err
	}

	def := &TaskDefinition{
		ID:                    s.node.Generate().String(),
		Code:                  in.code(),
		Vertical:              in.Vertical,
		Title:                 in.Title,
		Description:           in.Description,
		AcceptedEvidenceKinds: kindsToArray(in.AcceptedEvidenceKinds),
		BasePoints:            in.BasePoints,
		BonusRules:            bonuses,
		DayOffset:             in.DayOffset,
		Active:                in.Active == nil || *in.Active,
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"vertical", "title", "description", "accepted_evidence_kinds",
			"base_points", "bonus_rules", "day_offset", "active", "updated_at",
		}),
	}).Create(def).Error; err != nil {
		return nil, err
	}

	s.Invalidate(ctx)

	stored, err := s.definitions.FindOne(ctx, &TaskDefinition{Code: def.Code})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

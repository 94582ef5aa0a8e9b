package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"careerloop-engine/pkg/db/option"
	"careerloop-engine/pkg/db/pagination"
	"careerloop-engine/pkg/dns"
	"careerloop-engine/pkg/errutil"
	"careerloop-engine/pkg/repository"
	"careerloop-engine/pkg/util"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	verifier dns.Verifier

	profiles repository.Repository[Profile]
}

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Verifier dns.Verifier `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		verifier: p.Verifier,
		profiles: repository.ProvideStore[Profile](p.DB),
	}
}

type CreateParams struct {
	ID              string `json:"id"`
	DisplayName     string `json:"display_name" binding:"required"`
	Email           string `json:"email" binding:"omitempty,email"`
	PortfolioDomain string `json:"portfolio_domain"`
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*Profile, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(zap.String("trace_id", span.SpanContext().TraceID().String()))

	if strings.TrimSpace(p.DisplayName) == "" {
		return nil, errutil.ValidationFailed("invalid profile", nil, errutil.WithDetails(errutil.Detail{Field: "display_name", Message: "is required"}))
	}

	id := strings.TrimSpace(p.ID)
	if id == "" {
		id = s.node.Generate().String()
	} else {
		existing, err := s.profiles.FindOne(ctx, &Profile{ID: id})
		if err != nil {
			zapLog.Error("failed to query profile", zap.String("user_id", id), zap.Error(err))
			return nil, err
		}
		if existing != nil {
			return nil, errutil.Conflict("profile already exists", nil)
		}
	}

	profile := &Profile{
		ID:               id,
		DisplayName:      p.DisplayName,
		Email:            strings.ToLower(strings.TrimSpace(p.Email)),
		PortfolioDomain:  strings.TrimSpace(p.PortfolioDomain),
		VerificationCode: util.GenerateVerificationCode(),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		zapLog.Error("failed to create profile", zap.String("user_id", id), zap.Error(err))
		return nil, err
	}

	zapLog.Info("profile created", zap.String("user_id", id))
	return profile, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Profile, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errutil.NotFound("user not found", ErrUserNotFound)
	}
	profile, err := s.profiles.FindOne(ctx, &Profile{ID: id})
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, errutil.NotFound("user not found", ErrUserNotFound)
	}
	return profile, nil
}

// Page walks profiles in id order for batch fan-out.
func (s *Service) Page(ctx context.Context, p pagination.Pagination) ([]*Profile, *pagination.PageInfo, error) {
	p.Limit = min(max(p.Limit, 1), 250)
	rows, err := s.profiles.Find(ctx, nil, option.ApplyPagination(p))
	if err != nil {
		return nil, nil, err
	}

	info := &pagination.PageInfo{}
	if len(rows) > p.Limit {
		rows = rows[:p.Limit]
		info.HasMore = true
	}
	if info.HasMore && len(rows) > 0 {
		info.NextCursor, _ = pagination.EncodeCursor(pagination.Cursor{ID: rows[len(rows)-1].ID})
	}
	return rows, info, nil
}

// SetPortfolioDomain records a new domain and clears any previous proof.
func (s *Service) SetPortfolioDomain(ctx context.Context, id, domain string) (*Profile, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"portfolio_domain":   strings.TrimSpace(domain),
		"domain_verified_at": nil,
		"updated_at":         time.Now(),
	}
	if err := s.profiles.Update(ctx, id, &updates); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// VerifyDomain checks the portfolio domain's TXT record against the profile's
// verification code.
func (s *Service) VerifyDomain(ctx context.Context, id string) (*Profile, error) {
	zapLog := zap.L().With(zap.String("user_id", id))

	profile, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile.PortfolioDomain == "" {
		return nil, errutil.BadRequest("profile has no portfolio domain", nil)
	}
	if profile.DomainVerified() {
		return profile, nil
	}
	if s.verifier == nil {
		return nil, errutil.NotImplemented("domain verification is not configured", nil)
	}

	if err := s.verifier.VerifyOwnership(ctx, profile.PortfolioDomain, profile.VerificationCode); err != nil {
		zapLog.Warn("DNS verification failed", zap.String("domain", profile.PortfolioDomain), zap.Error(err))
		return nil, errutil.UnprocessableEntity("dns verification failed", err)
	}

	now := time.Now()
	updates := map[string]any{"domain_verified_at": now, "updated_at": now}
	if err := s.profiles.Update(ctx, id, &updates); err != nil {
		zapLog.Error("failed to mark domain verified", zap.Error(err))
		return nil, err
	}
	profile.DomainVerifiedAt = &now
	return profile, nil
}

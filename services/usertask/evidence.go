package usertask

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"careerloop-engine/pkg/errutil"
	"careerloop-engine/services/profile"
	v "careerloop-engine/services/verification"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SubmitEvidenceParams struct {
	UserTaskID string         `json:"-"`
	Kind       v.EvidenceKind `json:"kind" binding:"required"`
	URL        string         `json:"url"`
	FileRef    string         `json:"file_ref"`
	Text       string         `json:"text"`
	Export     map[string]any `json:"export"`
}

func (p SubmitEvidenceParams) validate() error {
	detail := func(field, msg string) error {
		return errutil.ValidationFailed("invalid evidence", nil, errutil.WithDetails(errutil.Detail{Field: field, Message: msg}))
	}

	switch p.Kind {
	case v.EvidenceURL:
		u, err := url.Parse(strings.TrimSpace(p.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return detail("url", "must be an absolute http(s) url")
		}
	case v.EvidenceFile, v.EvidenceScreenshot:
		if strings.TrimSpace(p.FileRef) == "" {
			return detail("file_ref", "is required")
		}
	case v.EvidenceExport:
		if len(p.Export) == 0 {
			return detail("export", "is required")
		}
	case v.EvidenceText:
		if strings.TrimSpace(p.Text) == "" {
			return detail("text", "is required")
		}
	default:
		return detail("kind", "must be one of url, file, screenshot, export, text")
	}
	return nil
}

// SubmitEvidence attaches evidence to a user task. Submissions are additive and
// accepted in any status; the first one moves NOT_STARTED to SUBMITTED.
func (s *Service) SubmitEvidence(ctx context.Context, p SubmitEvidenceParams) (*Evidence, error) {
	zapLog := zap.L().With(zap.String("user_task_id", p.UserTaskID), zap.String("kind", string(p.Kind)))

	task, err := s.Get(ctx, p.UserTaskID)
	if err != nil {
		return nil, err
	}
	def := task.Definition
	if def == nil {
		if def, err = s.catalog.Get(ctx, task.DefinitionID); err != nil {
			return nil, err
		}
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	if !def.Accepts(p.Kind) {
		return nil, errutil.UnprocessableEntity("evidence kind "+string(p.Kind)+" is not accepted by "+def.Code, ErrEvidenceKindNotAccepted)
	}

	if (p.Kind == v.EvidenceFile || p.Kind == v.EvidenceScreenshot) && s.objects != nil {
		ok, err := s.objects.Exists(ctx, p.FileRef)
		if err != nil {
			zapLog.Error("failed to check evidence object", zap.Error(err))
			return nil, errutil.BadGateway("failed to check evidence object", err)
		}
		if !ok {
			return nil, errutil.UnprocessableEntity("evidence object not found", ErrEvidenceObjectMissing)
		}
	}

	payload := map[string]any{}
	for k, val := range p.Export {
		payload[k] = val
	}
	if p.Kind == v.EvidenceURL && task.TaskCode == v.CodeCareerPortfolioDomain {
		s.enrichDomainProof(ctx, task.UserID, p.URL, payload)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errutil.BadRequest("invalid export payload", err)
	}

	ev := &Evidence{
		ID:         s.node.Generate().String(),
		UserTaskID: task.ID,
		UserID:     task.UserID,
		Kind:       p.Kind,
		URL:        strings.TrimSpace(p.URL),
		FileRef:    strings.TrimSpace(p.FileRef),
		Text:       p.Text,
		Payload:    datatypes.JSON(raw),
		Outcome:    v.OutcomePending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.evidence.WithTrx(tx).Create(ctx, ev); err != nil {
			return err
		}
		return tx.WithContext(ctx).Model(&UserTask{}).
			Where("id = ? AND status = ?", task.ID, v.StatusNotStarted).
			Updates(map[string]any{"status": v.StatusSubmitted, "updated_at": time.Now()}).Error
	})
	if err != nil {
		zapLog.Error("failed to store evidence", zap.Error(err))
		return nil, err
	}

	zapLog.Info("evidence submitted", zap.String("evidence_id", ev.ID))
	return ev, nil
}

// enrichDomainProof records whether the submitted URL's host is the user's
// DNS-proven portfolio domain.
func (s *Service) enrichDomainProof(ctx context.Context, userID, rawURL string, payload map[string]any) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	payload[v.PayloadDomain] = host
	payload[v.PayloadDomainVerified] = false

	prof, err := s.profile.Get(ctx, userID)
	if err != nil {
		return
	}
	if !strings.EqualFold(strings.TrimPrefix(prof.PortfolioDomain, "www."), host) {
		if prof, err = s.profile.SetPortfolioDomain(ctx, userID, host); err != nil {
			zap.L().Warn("failed to record portfolio domain", zap.String("user_id", userID), zap.Error(err))
			return
		}
	}

	verified := prof
	if !prof.DomainVerified() {
		if verified, err = s.profile.VerifyDomain(ctx, userID); err != nil {
			zap.L().Info("portfolio domain not proven yet", zap.String("user_id", userID), zap.String("domain", host), zap.Error(err))
			return
		}
	}
	payload[v.PayloadDomainVerified] = isVerified(verified)
}

func isVerified(p *profile.Profile) bool {
	return p != nil && p.DomainVerified()
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ReviewEvidence records a reviewer's decision. Approved evidence verifies the
// task on the next pass; rejected evidence is ignored by the engine.
func (s *Service) ReviewEvidence(ctx context.Context, id string, decision Decision, reviewer string) (*Evidence, error) {
	var outcome v.EvidenceOutcome
	switch decision {
	case DecisionApprove:
		outcome = v.OutcomeApproved
	case DecisionReject:
		outcome = v.OutcomeRejected
	default:
		return nil, errutil.BadRequest("decision must be approve or reject", nil)
	}

	if id == "" {
		return nil, errutil.NotFound("evidence not found", ErrEvidenceNotFound)
	}
	now := time.Now()
	updates := map[string]any{"outcome": outcome, "reviewed_by": reviewer, "reviewed_at": now}
	res := s.db.WithContext(ctx).Model(&Evidence{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errutil.NotFound("evidence not found", ErrEvidenceNotFound)
	}

	ev, err := s.evidence.FindOne(ctx, &Evidence{ID: id})
	if err != nil {
		return nil, err
	}
	zap.L().Info("evidence reviewed", zap.String("evidence_id", id), zap.String("outcome", string(outcome)), zap.String("reviewer", reviewer))
	return ev, nil
}

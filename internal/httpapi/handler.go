package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"careerloop-engine/pkg/db/pagination"
	"careerloop-engine/pkg/errutil"
	"careerloop-engine/pkg/middleware"
	"careerloop-engine/pkg/period"
	"careerloop-engine/services/catalog"
	"careerloop-engine/services/ledger"
	"careerloop-engine/services/orchestrator"
	"careerloop-engine/services/profile"
	"careerloop-engine/services/scoring"
	"careerloop-engine/services/signal"
	"careerloop-engine/services/task"
	"careerloop-engine/services/usertask"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type Handler struct {
	calc         *period.Calculator
	profiles     *profile.Service
	catalog      *catalog.Service
	tasks        *usertask.Service
	orchestrator *orchestrator.Service
	scoring      *scoring.Service
	ledger       *ledger.Service
	signals      *signal.Service
	auth         *signal.Authenticator
	jobs         *task.Service
}

type Params struct {
	fx.In

	Calc         *period.Calculator
	Profiles     *profile.Service
	Catalog      *catalog.Service
	Tasks        *usertask.Service
	Orchestrator *orchestrator.Service
	Scoring      *scoring.Service
	Ledger       *ledger.Service
	Signals      *signal.Service
	Auth         *signal.Authenticator
	Jobs         *task.Service
}

func NewHandler(p Params) *Handler {
	return &Handler{
		calc:         p.Calc,
		profiles:     p.Profiles,
		catalog:      p.Catalog,
		tasks:        p.Tasks,
		orchestrator: p.Orchestrator,
		scoring:      p.Scoring,
		ledger:       p.Ledger,
		signals:      p.Signals,
		auth:         p.Auth,
		jobs:         p.Jobs,
	}
}

// bindOptional binds a JSON body that may be absent.
func bindOptional(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *Handler) CreateProfile(c *gin.Context) {
	var req profile.CreateParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	p, err := h.profiles.Create(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProfile(c *gin.Context) {
	p, err := h.profiles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type domainRequest struct {
	Domain string `json:"domain" binding:"required,fqdn"`
}

func (h *Handler) SetDomain(c *gin.Context) {
	var req domainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	p, err := h.profiles.SetPortfolioDomain(c.Request.Context(), c.Param("id"), req.Domain)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) VerifyDomain(c *gin.Context) {
	p, err := h.profiles.VerifyDomain(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type instantiateRequest struct {
	Period string        `json:"period"`
	Mode   usertask.Mode `json:"mode"`
}

func (h *Handler) Instantiate(c *gin.Context) {
	var req instantiateRequest
	if err := bindOptional(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.tasks.Instantiate(c.Request.Context(), usertask.InstantiateParams{
		UserID:    c.Param("user_id"),
		PeriodKey: req.Period,
		Mode:      req.Mode,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type verifyRequest struct {
	Period string `json:"period"`
}

func (h *Handler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := bindOptional(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.orchestrator.Verify(c.Request.Context(), orchestrator.VerifyParams{
		UserID:    c.Param("user_id"),
		PeriodKey: req.Period,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) resolve(c *gin.Context) (period.Period, bool) {
	per, err := h.calc.Resolve(c.Query("period"))
	if err != nil {
		_ = c.Error(errutil.BadRequest("invalid period", usertask.ErrInvalidPeriod))
		return period.Period{}, false
	}
	return per, true
}

func (h *Handler) ListTasks(c *gin.Context) {
	per, ok := h.resolve(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	userID := c.Param("user_id")

	if _, err := h.profiles.Get(ctx, userID); err != nil {
		_ = c.Error(err)
		return
	}
	tasks, err := h.tasks.ListTasks(ctx, userID, per.Key)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"period": per.Key, "user_tasks": tasks})
}

func (h *Handler) GetUserTask(c *gin.Context) {
	t, err := h.tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) SubmitEvidence(c *gin.Context) {
	var req usertask.SubmitEvidenceParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	req.UserTaskID = c.Param("id")

	ev, err := h.tasks.SubmitEvidence(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"evidence_id": ev.ID})
}

func (h *Handler) Score(c *gin.Context) {
	summary, err := h.scoring.Get(c.Request.Context(), c.Param("user_id"), c.Query("period"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) Balance(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("user_id")
	if _, err := h.profiles.Get(ctx, userID); err != nil {
		_ = c.Error(err)
		return
	}

	b, err := h.ledger.GetBalance(ctx, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) Ledger(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	entries, info, err := h.ledger.ListEntries(c.Request.Context(), c.Param("user_id"), page)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "page_info": info})
}

func (h *Handler) VerifyLedger(c *gin.Context) {
	report, err := h.ledger.VerifyChain(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// IngestSignals accepts one signal object or an array of them. When a signing
// key is configured the body must be a compact JWS wrapping that JSON.
func (h *Handler) IngestSignals(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		_ = c.Error(errutil.BadRequest("unreadable body", err))
		return
	}
	if h.auth.SignedPayloads() {
		if body, err = h.auth.Open(body); err != nil {
			_ = c.Error(errutil.Unauthorized("invalid payload signature", err))
			return
		}
	}

	var items []signal.AppendParams
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		err = json.Unmarshal(body, &items)
	} else {
		var one signal.AppendParams
		err = json.Unmarshal(body, &one)
		items = append(items, one)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	source := middleware.GetSource(c.Request.Context(), signal.SourceAPI)
	for i := range items {
		if items[i].Source == "" {
			items[i].Source = source
		}
	}

	ctx := c.Request.Context()
	if len(items) == 1 {
		sig, created, err := h.signals.Append(ctx, items[0])
		if err != nil {
			_ = c.Error(err)
			return
		}
		code := http.StatusCreated
		if !created {
			code = http.StatusOK
		}
		c.JSON(code, sig)
		return
	}

	c.JSON(http.StatusAccepted, h.signals.AppendBatch(ctx, items))
}

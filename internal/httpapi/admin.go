package httpapi

import (
	"net/http"
	"strconv"

	"careerloop-engine/pkg/middleware"
	"careerloop-engine/services/catalog"
	"careerloop-engine/services/task"
	"careerloop-engine/services/usertask"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListDefinitions(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("include_inactive"))

	defs, err := h.catalog.List(c.Request.Context(), includeInactive)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_definitions": defs})
}

func (h *Handler) CreateDefinition(c *gin.Context) {
	var req catalog.DefinitionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	def, err := h.catalog.Create(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, def)
}

func (h *Handler) UpdateDefinition(c *gin.Context) {
	var req catalog.DefinitionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	def, err := h.catalog.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, def)
}

type reviewRequest struct {
	Decision usertask.Decision `json:"decision" binding:"required,oneof=approve reject"`
}

func (h *Handler) ReviewEvidence(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	ev, err := h.tasks.ReviewEvidence(c.Request.Context(), c.Param("id"), req.Decision, middleware.Actor(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RejectTask(c *gin.Context) {
	var req rejectRequest
	if err := bindOptional(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	t, err := h.tasks.Reject(c.Request.Context(), c.Param("id"), middleware.Actor(c), req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type batchRequest struct {
	Period string        `json:"period"`
	Mode   usertask.Mode `json:"mode"`
}

func (h *Handler) startBatch(c *gin.Context, kind task.Kind) {
	var req batchRequest
	if err := bindOptional(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	p := task.BatchParams{Kind: kind, PeriodKey: req.Period}
	if kind == task.KindInstantiate {
		p.Mode = req.Mode
	}
	job, err := h.jobs.EnqueueBatch(c.Request.Context(), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) InstantiateBatch(c *gin.Context) {
	h.startBatch(c, task.KindInstantiate)
}

func (h *Handler) VerifyBatch(c *gin.Context) {
	h.startBatch(c, task.KindVerify)
}

func (h *Handler) GetBatch(c *gin.Context) {
	job, err := h.jobs.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, job)
}

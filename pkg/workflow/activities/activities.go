package activities

import (
	"context"

	"careerloop-engine/services/task"
	"careerloop-engine/services/usertask"

	"go.temporal.io/sdk/activity"
	"go.uber.org/fx"
)

const (
	RunInstantiateBatch = "RunInstantiateBatch"
	RunVerifyBatch      = "RunVerifyBatch"
)

// BatchInput names the period and, for instantiation, the mode of a batch.
type BatchInput struct {
	PeriodKey string `json:"period"`
	Mode      string `json:"mode,omitempty"`
}

// BatchSummary is the part of a batch job a workflow needs to see.
type BatchSummary struct {
	JobID     string `json:"job_id"`
	RunCode   string `json:"run_code"`
	PeriodKey string `json:"period"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

type Activities struct {
	Tasks *task.Service
}

type Params struct {
	fx.In

	Tasks *task.Service
}

func New(p Params) *Activities {
	return &Activities{Tasks: p.Tasks}
}

func (a *Activities) run(ctx context.Context, p task.BatchParams) (*BatchSummary, error) {
	logger := activity.GetLogger(ctx)

	job, err := a.Tasks.RunBatch(ctx, p)
	if err != nil {
		logger.Error("batch failed", "kind", p.Kind, "error", err)
		return nil, err
	}

	logger.Info("batch finished", "run_code", job.RunCode, "failed", job.Failed)
	return &BatchSummary{
		JobID:     job.ID,
		RunCode:   job.RunCode,
		PeriodKey: job.PeriodKey,
		Total:     job.Total,
		Succeeded: job.Succeeded,
		Failed:    job.Failed,
	}, nil
}

func (a *Activities) RunInstantiateBatch(ctx context.Context, in BatchInput) (*BatchSummary, error) {
	return a.run(ctx, task.BatchParams{Kind: task.KindInstantiate, PeriodKey: in.PeriodKey, Mode: usertask.Mode(in.Mode)})
}

func (a *Activities) RunVerifyBatch(ctx context.Context, in BatchInput) (*BatchSummary, error) {
	return a.run(ctx, task.BatchParams{Kind: task.KindVerify, PeriodKey: in.PeriodKey})
}

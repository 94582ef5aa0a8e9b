package workflow

import (
	"time"

	"careerloop-engine/pkg/workflow/activities"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	defaultVerifyInterval = 24 * time.Hour
	defaultVerifications  = 7
)

type WeeklyCycleInput struct {
	// PeriodKey defaults to the period current when the cycle starts.
	PeriodKey      string        `json:"period,omitempty"`
	Mode           string        `json:"mode,omitempty"`
	VerifyInterval time.Duration `json:"verify_interval,omitempty"`
	Verifications  int           `json:"verifications,omitempty"`
}

type WeeklyCycleResult struct {
	PeriodKey     string                    `json:"period"`
	Instantiate   activities.BatchSummary   `json:"instantiate"`
	Verifications []activities.BatchSummary `json:"verifications"`
	Skipped       int                       `json:"skipped"`
}

// WeeklyCycle instantiates the period for every profile, then runs a verify
// batch after each interval. All passes use the period resolved by the first
// batch, so the last pass can close out a week that already ended.
func WeeklyCycle(ctx workflow.Context, in WeeklyCycleInput) (*WeeklyCycleResult, error) {
	logger := workflow.GetLogger(ctx)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	mode := in.Mode
	if mode == "" {
		mode = "ensure"
	}
	interval := in.VerifyInterval
	if interval <= 0 {
		interval = defaultVerifyInterval
	}
	runs := in.Verifications
	if runs <= 0 {
		runs = defaultVerifications
	}

	var inst activities.BatchSummary
	if err := workflow.ExecuteActivity(ctx, activities.RunInstantiateBatch, activities.BatchInput{
		PeriodKey: in.PeriodKey,
		Mode:      mode,
	}).Get(ctx, &inst); err != nil {
		logger.Error("failed to ExecuteActivity", "activity", activities.RunInstantiateBatch, "error", err)
		return nil, err
	}

	res := &WeeklyCycleResult{PeriodKey: inst.PeriodKey, Instantiate: inst}
	for i := 0; i < runs; i++ {
		if err := workflow.Sleep(ctx, interval); err != nil {
			return res, err
		}

		var sum activities.BatchSummary
		if err := workflow.ExecuteActivity(ctx, activities.RunVerifyBatch, activities.BatchInput{
			PeriodKey: res.PeriodKey,
		}).Get(ctx, &sum); err != nil {
			// The next pass recomputes everything, so one lost pass is skipped.
			logger.Warn("verify pass failed", "period", res.PeriodKey, "pass", i+1, "error", err)
			res.Skipped++
			continue
		}
		res.Verifications = append(res.Verifications, sum)
	}

	return res, nil
}

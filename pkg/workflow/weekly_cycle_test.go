package workflow

import (
	"errors"
	"testing"
	"time"

	"careerloop-engine/pkg/config"
	"careerloop-engine/pkg/workflow/activities"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
)

func newEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(WeeklyCycle, workflow.RegisterOptions{Name: WorkflowWeeklyCycle})
	env.RegisterActivity(&activities.Activities{})
	return env
}

func TestWeeklyCycle_VerifiesTheInstantiatedPeriod(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(activities.RunInstantiateBatch, mock.Anything, activities.BatchInput{Mode: "ensure"}).
		Return(&activities.BatchSummary{RunCode: "INS-1", PeriodKey: "2025-05", Total: 2, Succeeded: 2}, nil).Once()
	env.OnActivity(activities.RunVerifyBatch, mock.Anything, activities.BatchInput{PeriodKey: "2025-05"}).
		Return(&activities.BatchSummary{RunCode: "VRF-1", PeriodKey: "2025-05", Total: 2, Succeeded: 2}, nil).Times(3)

	env.ExecuteWorkflow(WorkflowWeeklyCycle, WeeklyCycleInput{VerifyInterval: time.Hour, Verifications: 3})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res WeeklyCycleResult
	require.NoError(t, env.GetWorkflowResult(&res))
	require.Equal(t, "2025-05", res.PeriodKey)
	require.Equal(t, "INS-1", res.Instantiate.RunCode)
	require.Len(t, res.Verifications, 3)
	require.Zero(t, res.Skipped)
	env.AssertExpectations(t)
}

func TestWeeklyCycle_SkipsFailedVerifyPass(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(activities.RunInstantiateBatch, mock.Anything, mock.Anything).
		Return(&activities.BatchSummary{PeriodKey: "2025-05"}, nil)
	env.OnActivity(activities.RunVerifyBatch, mock.Anything, mock.Anything).
		Return(nil, errors.New("database unavailable")).Times(3)
	env.OnActivity(activities.RunVerifyBatch, mock.Anything, mock.Anything).
		Return(&activities.BatchSummary{PeriodKey: "2025-05"}, nil)

	env.ExecuteWorkflow(WorkflowWeeklyCycle, WeeklyCycleInput{PeriodKey: "2025-05", VerifyInterval: time.Hour, Verifications: 2})
	require.NoError(t, env.GetWorkflowError())

	var res WeeklyCycleResult
	require.NoError(t, env.GetWorkflowResult(&res))
	require.Equal(t, 1, res.Skipped)
	require.Len(t, res.Verifications, 1)
}

func TestWeeklyCycle_InstantiateFailureEndsCycle(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(activities.RunInstantiateBatch, mock.Anything, mock.Anything).
		Return(nil, errors.New("invalid period"))

	env.ExecuteWorkflow(WorkflowWeeklyCycle, WeeklyCycleInput{PeriodKey: "2025-05"})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}

func TestCronSpec(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scheduler.InstantiateHour = 0
	cfg.Scheduler.InstantiateMinute = 5
	require.Equal(t, "5 0 * * 1", CronSpec(cfg))
	require.Equal(t, defaultTaskQueue, taskQueue(cfg))
}

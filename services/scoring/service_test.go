package scoring

import (
	"context"
	"testing"
	"time"

	"careerloop-engine/pkg/errutil"
	"careerloop-engine/pkg/period"
	"careerloop-engine/services/catalog"
	"careerloop-engine/services/profile"
	"careerloop-engine/services/testutil"
	"careerloop-engine/services/usertask"
	v "careerloop-engine/services/verification"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t, &profile.Profile{}, &catalog.TaskDefinition{}, &usertask.UserTask{}, &ScoreSummary{})
	return NewService(ServiceParams{
		DB:   db,
		Node: testutil.NewNode(t),
		Calc: period.NewCalculatorIn(time.UTC),
	}), db
}

func seedTasks(t *testing.T, db *gorm.DB, userID, periodKey string, statuses []v.Status, points []int) {
	t.Helper()
	for i, st := range statuses {
		require.NoError(t, db.Create(&usertask.UserTask{
			ID:           periodKey + "-" + string(rune('a'+i)),
			UserID:       userID,
			DefinitionID: "def-" + string(rune('a'+i)),
			PeriodKey:    periodKey,
			TaskCode:     "code",
			DueAt:        time.Now(),
			Status:       st,
			ScoreAwarded: points[i],
		}).Error)
	}
}

func TestTally(t *testing.T) {
	total, b := Tally(
		[]v.Status{v.StatusVerified, v.StatusPartiallyVerified, v.StatusSubmitted, v.StatusNotStarted, v.StatusRejected},
		[]int{15, 3, 8, 0, 7},
	)
	require.Equal(t, 33, total)
	require.Equal(t, Breakdown{
		TasksTotal: 5, TasksCompleted: 1, TasksPartiallyVerified: 1,
		TasksSubmitted: 1, TasksNotStarted: 1, TasksRejected: 1,
	}, b)
}

func TestRecompute_MatchesTasksAfterDirectMutation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedTasks(t, db, "user-1", "2025-05",
		[]v.Status{v.StatusVerified, v.StatusSubmitted, v.StatusNotStarted},
		[]int{15, 8, 0})

	summary, err := svc.Recompute(ctx, "user-1", "2025-05")
	require.NoError(t, err)
	require.Equal(t, 23, summary.PointsTotal)
	require.Equal(t, 1, summary.Counts().TasksCompleted)
	require.Equal(t, 1, summary.StreakWeeks)

	require.NoError(t, db.Model(&usertask.UserTask{}).Where("id = ?", "2025-05-b").
		Updates(map[string]any{"status": v.StatusVerified, "score_awarded": 10}).Error)

	summary, err = svc.Recompute(ctx, "user-1", "2025-05")
	require.NoError(t, err)
	require.Equal(t, 25, summary.PointsTotal)
	require.Equal(t, 2, summary.Counts().TasksCompleted)

	var count int64
	require.NoError(t, db.Model(&ScoreSummary{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRecompute_Streak(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedTasks(t, db, "user-1", "2025-04", []v.Status{v.StatusVerified}, []int{10})
	seedTasks(t, db, "user-1", "2025-05", []v.Status{v.StatusVerified}, []int{10})
	seedTasks(t, db, "user-1", "2025-06", []v.Status{v.StatusSubmitted}, []int{8})

	for _, key := range []string{"2025-04", "2025-05"} {
		_, err := svc.Recompute(ctx, "user-1", key)
		require.NoError(t, err)
	}
	got, err := svc.Get(ctx, "user-1", "2025-05")
	require.NoError(t, err)
	require.Equal(t, 2, got.StreakWeeks)

	broken, err := svc.Recompute(ctx, "user-1", "2025-06")
	require.NoError(t, err)
	require.Zero(t, broken.StreakWeeks)
}

func TestRecompute_EmptyPeriodAndErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	summary, err := svc.Recompute(ctx, "user-1", "2025-05")
	require.NoError(t, err)
	require.Zero(t, summary.PointsTotal)
	require.Zero(t, summary.Counts().TasksTotal)

	_, err = svc.Recompute(ctx, "user-1", "2025-99")
	be, ok := errutil.As(err)
	require.True(t, ok)
	require.Equal(t, errutil.StatusBadRequest, be.Code)

	_, err = svc.Get(ctx, "user-2", "2025-05")
	require.ErrorIs(t, err, ErrSummaryNotFound)
}

package usertask

import (
	"context"
	"testing"
	"time"

	"careerloop-engine/pkg/errutil"
	"careerloop-engine/pkg/period"
	"careerloop-engine/services/catalog"
	"careerloop-engine/services/profile"
	"careerloop-engine/services/testutil"
	v "careerloop-engine/services/verification"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeObjects struct {
	existsFn func(ctx context.Context, ref string) (bool, error)
}

func (f *fakeObjects) Exists(ctx context.Context, ref string) (bool, error) {
	if f.existsFn != nil {
		return f.existsFn(ctx, ref)
	}
	return true, nil
}

type fixture struct {
	db      *gorm.DB
	svc     *Service
	catalog *catalog.Service
	profile *profile.Service
}

func newFixture(t *testing.T, objects *fakeObjects) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t, append([]any{&profile.Profile{}, &catalog.TaskDefinition{}}, Models()...)...)
	node := testutil.NewNode(t)
	bonuses, err := v.NewBonusEvaluator()
	require.NoError(t, err)

	cat := catalog.NewService(catalog.ServiceParams{DB: db, Node: node, Bonuses: bonuses})
	prof := profile.NewService(profile.ServiceParams{DB: db, Node: node})

	p := ServiceParams{
		DB:      db,
		Node:    node,
		Calc:    period.NewCalculatorIn(time.UTC),
		Catalog: cat,
		Profile: prof,
	}
	if objects != nil {
		p.Objects = objects
	}
	return &fixture{db: db, svc: NewService(p), catalog: cat, profile: prof}
}

func (f *fixture) seedUser(t *testing.T, id string) {
	t.Helper()
	_, err := f.profile.Create(context.Background(), profile.CreateParams{ID: id, DisplayName: id})
	require.NoError(t, err)
}

func (f *fixture) seedDefinition(t *testing.T, title string, offset int, kinds ...v.EvidenceKind) *catalog.TaskDefinition {
	t.Helper()
	def, err := f.catalog.Create(context.Background(), catalog.DefinitionInput{
		Vertical:              catalog.VerticalLinkedIn,
		Title:                 title,
		AcceptedEvidenceKinds: kinds,
		BasePoints:            10,
		DayOffset:             offset,
	})
	require.NoError(t, err)
	return def
}

func TestDueAt(t *testing.T) {
	per, err := period.Parse("2025-05", time.UTC)
	require.NoError(t, err)

	cases := map[int]time.Time{
		0: time.Date(2025, 1, 28, 23, 59, 59, int(999*time.Millisecond), time.UTC),
		4: time.Date(2025, 2, 1, 23, 59, 59, int(999*time.Millisecond), time.UTC),
		5: time.Date(2025, 2, 2, 23, 59, 59, int(999*time.Millisecond), time.UTC),
		6: time.Date(2025, 2, 2, 23, 59, 59, int(999*time.Millisecond), time.UTC),
	}
	for offset, want := range cases {
		require.True(t, want.Equal(DueAt(per, offset)), "offset %d", offset)
	}
}

func TestInstantiate_FreshWeek(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedUser(t, "user-1")
	for i, offset := range []int{0, 2, 4, 6} {
		f.seedDefinition(t, []string{"Post", "Comment", "Invite", "Refresh"}[i], offset, v.EvidenceURL)
	}

	res, err := f.svc.Instantiate(ctx, InstantiateParams{UserID: "user-1", PeriodKey: "2025-05"})
	require.NoError(t, err)
	require.Equal(t, "2025-05", res.PeriodKey)
	require.Equal(t, ModeReset, res.Mode)
	require.Len(t, res.UserTasks, 4)

	for i, task := range res.UserTasks {
		require.Equal(t, v.StatusNotStarted, task.Status)
		require.Zero(t, task.ScoreAwarded)
		require.NotNil(t, task.Definition)
		require.True(t, res.Period.Contains(task.DueAt))
		if i > 0 {
			require.True(t, task.DueAt.After(res.UserTasks[i-1].DueAt))
		}
	}
}

func TestInstantiate_ResetIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedUser(t, "user-1")
	f.seedDefinition(t, "Post", 0, v.EvidenceURL)
	f.seedDefinition(t, "Comment", 1, v.EvidenceURL)

	first, err := f.svc.Instantiate(ctx, InstantiateParams{UserID: "user-1", PeriodKey: "2025-05", Mode: ModeReset})
	require.NoError(t, err)
	_, err = f.svc.SubmitEvidence(ctx, SubmitEvidenceParams{UserTaskID: first.UserTasks[0].ID, Kind: v.EvidenceURL, URL: "https://example.com/post"})
	require.NoError(t, err)

	second, err := f.svc.Instantiate(ctx, InstantiateParams{UserID: "user-1", PeriodKey: "2025-05", Mode: ModeReset})
	require.NoError(t, err)
	require.Len(t, second.UserTasks, 2)
	for _, task := range second.UserTasks {
		require.Equal(t, v.StatusNotStarted, task.Status)
	}

	var count int64
	require.NoError(t, f.db.Model(&UserTask{}).Count(&count).Error)
	require.EqualValues(t, 2, count)
	require.NoError(t, f.db.Model(&Evidence{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestInstantiate_EnsureKeepsProgress(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedUser(t, "user-1")
	f.seedDefinition(t, "Post", 0, v.EvidenceURL)

	first, err := f.svc.Instantiate(ctx, InstantiateParams{UserID: "user-1", PeriodKey: "2025-05", Mode: ModeEnsure})
	require.NoError(t, err)
	require.Len(t, first.UserTasks, 1)
	taskID := first.UserTasks[0].ID

	_, err = f.svc.SubmitEvidence(ctx, SubmitEvidenceParams{UserTaskID: taskID, Kind: v.EvidenceURL, URL: "https://example.com/post"})
	require.NoError(t, err)

	f.seedDefinition(t, "Comment", 1, v.EvidenceText)

	second, err := f.svc.Instantiate(ctx, InstantiateParams{UserID: "user-1", PeriodKey: "2025-05", Mode: ModeEnsure})
	require.NoError(t, err)
	require.Len(t, second.UserTasks, 2)
	require.Equal(t, taskID, second.UserTasks[0].ID)
	require.Equal(t, v.StatusSubmitted, second.UserTasks[0].Status)
	require.Equal(t, v.StatusNotStarted, second.UserTasks[1].Status)

	evidence, err := f.svc.EvidenceFor(ctx, []string{taskID})
	require.NoError(t, err)
	require.Len(t, evidence[taskID], 1)
}

func TestInstantiate_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Instantiate(ctx, InstantiateParams{UserID: "ghost", PeriodKey: "2025-05"})
	require.ErrorIs(t, err, profile.ErrUserNotFound)
	be, ok := errutil.As(err)
	require.True(t, ok)
	require.Equal(t, errutil.StatusNotFound, be.Code)

	f.seedUser(t, "user-1")
	_, err = f.svc.Instantiate(ctx, InstantiateParams{UserID: "user-1", PeriodKey: "2025-54"})
	require.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = f.svc.Instantiate(ctx, InstantiateParams{UserID: "user-1", PeriodKey: "2025-05", Mode: "merge"})
	require.Error(t, err)
}

func TestInstantiate_EmptyCatalog(t *testing.T) {
	f := newFixture(t, nil)
	f.seedUser(t, "user-1")

	res, err := f.svc.Instantiate(context.Background(), InstantiateParams{UserID: "user-1", PeriodKey: "2025-05"})
	require.NoError(t, err)
	require.NotNil(t, res.UserTasks)
	require.Empty(t, res.UserTasks)
}

func TestSubmitEvidence(t *testing.T) {
	objects := &fakeObjects{existsFn: func(_ context.Context, ref string) (bool, error) {
		return ref == "uploads/resume.pdf", nil
	}}
	f := newFixture(t, objects)
	ctx := context.Background()
	f.seedUser(t, "user-1")
	f.seedDefinition(t, "Resume", 0, v.EvidenceFile, v.EvidenceText)

	res, err := f.svc.Instantiate(ctx, InstantiateParams{UserID: "user-1", PeriodKey: "2025-05"})
	require.NoError(t, err)
	taskID := res.UserTasks[0].ID

	_, err = f.svc.SubmitEvidence(ctx, SubmitEvidenceParams{UserTaskID: taskID, Kind: v.EvidenceURL, URL: "https://example.com"})
	require.ErrorIs(t, err, ErrEvidenceKindNotAccepted)

	_, err = f.svc.SubmitEvidence(ctx, SubmitEvidenceParams{UserTaskID: taskID, Kind: v.EvidenceFile, FileRef: "uploads/missing.pdf"})
	require.ErrorIs(t, err, ErrEvidenceObjectMissing)

	_, err = f.svc.SubmitEvidence(ctx, SubmitEvidenceParams{UserTaskID: taskID, Kind: v.EvidenceText})
	be, ok := errutil.As(err)
	require.True(t, ok)
	require.Equal(t, errutil.StatusValidationFailed, be.Code)

	_, err = f.svc.SubmitEvidence(ctx, SubmitEvidenceParams{UserTaskID: "nope", Kind: v.EvidenceText, Text: "hi"})
	require.ErrorIs(t, err, ErrUserTaskNotFound)

	ev, err := f.svc.SubmitEvidence(ctx, SubmitEvidenceParams{UserTaskID: taskID, Kind: v.EvidenceFile, FileRef: "uploads/resume.pdf"})
	require.NoError(t, err)
	require.Equal(t, v.OutcomePending, ev.Outcome)

	task, err := f.svc.Get(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, v.StatusSubmitted, task.Status)
}

func TestReviewEvidenceAndReject(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedUser(t, "user-1")
	f.seedDefinition(t, "Post", 0, v.EvidenceURL)

	res, err := f.svc.Instantiate(ctx, InstantiateParams{UserID: "user-1", PeriodKey: "2025-05"})
	require.NoError(t, err)
	taskID := res.UserTasks[0].ID

	ev, err := f.svc.SubmitEvidence(ctx, SubmitEvidenceParams{UserTaskID: taskID, Kind: v.EvidenceURL, URL: "https://example.com/p"})
	require.NoError(t, err)

	reviewed, err := f.svc.ReviewEvidence(ctx, ev.ID, DecisionApprove, "admin")
	require.NoError(t, err)
	require.Equal(t, v.OutcomeApproved, reviewed.Outcome)
	require.Equal(t, "admin", reviewed.ReviewedBy)

	_, err = f.svc.ReviewEvidence(ctx, "missing", DecisionReject, "admin")
	require.ErrorIs(t, err, ErrEvidenceNotFound)

	task, err := f.svc.Reject(ctx, taskID, "admin", "duplicate post")
	require.NoError(t, err)
	require.Equal(t, v.StatusRejected, task.Status)
	require.Equal(t, []string{"rejected by admin", "duplicate post"}, task.NoteList())

	_, err = f.svc.Reject(ctx, taskID, "admin", "")
	require.NoError(t, err)
}

func TestRecordVerification_GuardsStaleStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedUser(t, "user-1")
	f.seedDefinition(t, "Post", 0, v.EvidenceURL)

	res, err := f.svc.Instantiate(ctx, InstantiateParams{UserID: "user-1", PeriodKey: "2025-05"})
	require.NoError(t, err)
	task := res.UserTasks[0]

	require.NoError(t, f.svc.RecordVerification(ctx, task, Verification{Status: v.StatusSubmitted, Points: 8, Notes: []string{"awaiting"}}))

	// task still carries NOT_STARTED, so the second write is stale.
	err = f.svc.RecordVerification(ctx, task, Verification{Status: v.StatusVerified, Points: 10})
	be, ok := errutil.As(err)
	require.True(t, ok)
	require.Equal(t, errutil.StatusConflict, be.Code)

	stored, err := f.svc.Get(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, v.StatusSubmitted, stored.Status)
	require.Equal(t, 8, stored.ScoreAwarded)
	require.Equal(t, []string{"awaiting"}, stored.NoteList())
}

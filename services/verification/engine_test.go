package verification

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var week = Window{
	Start: time.Date(2025, time.January, 27, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, time.February, 2, 23, 59, 59, int(999*time.Millisecond), time.UTC),
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	bonuses, err := NewBonusEvaluator()
	require.NoError(t, err)
	return NewEngine(DefaultRegistry(), bonuses)
}

func urlEvidence() Evidence {
	return Evidence{ID: "ev-1", Kind: EvidenceURL, URL: "https://www.linkedin.com/posts/1", Outcome: OutcomePending}
}

func signalsFrom(kind string, actors ...string) []Signal {
	out := make([]Signal, 0, len(actors))
	for i, a := range actors {
		out = append(out, Signal{Kind: kind, Actor: a, HappenedAt: week.Start.Add(time.Duration(i+1) * 6 * time.Hour)})
	}
	return out
}

func weeklyPost(base int) Definition {
	return Definition{Code: CodeLinkedInWeeklyPost, BasePoints: base}
}

func TestVerify_NoEvidence(t *testing.T) {
	e := newTestEngine(t)

	out := e.Verify(Input{Definition: weeklyPost(10), Window: week, Signals: signalsFrom(SignalPostReaction, "a", "b", "c")})
	require.Equal(t, StatusNotStarted, out.Status)
	require.Zero(t, out.Points)
}

func TestVerify_EvidenceWithoutCorroboration(t *testing.T) {
	e := newTestEngine(t)

	out := e.Verify(Input{Definition: weeklyPost(10), Window: week, Evidence: []Evidence{urlEvidence()}})
	require.Equal(t, StatusSubmitted, out.Status)
	require.Equal(t, 8, out.Points)
}

func TestVerify_BestEvidenceKindWins(t *testing.T) {
	e := newTestEngine(t)

	out := e.Verify(Input{
		Definition: weeklyPost(10),
		Window:     week,
		Evidence:   []Evidence{urlEvidence(), {ID: "ev-2", Kind: EvidenceScreenshot, FileRef: "shots/1.png"}},
	})
	require.Equal(t, StatusSubmitted, out.Status)
	require.Equal(t, 9, out.Points)
}

func TestVerify_FullCorroborationWithBonus(t *testing.T) {
	e := newTestEngine(t)

	out := e.Verify(Input{
		Definition: weeklyPost(10),
		Window:     week,
		Evidence:   []Evidence{urlEvidence()},
		Signals:    signalsFrom(SignalPostReaction, "alice", "bob", "carol"),
	})
	require.Equal(t, StatusVerified, out.Status)
	require.Equal(t, 15, out.Points)
	require.Contains(t, out.Notes, "+5 points for 3 distinct actors engaging")
}

func TestVerify_SameActorNoActorBonus(t *testing.T) {
	e := newTestEngine(t)

	out := e.Verify(Input{
		Definition: weeklyPost(10),
		Window:     week,
		Evidence:   []Evidence{urlEvidence()},
		Signals:    signalsFrom(SignalPostReaction, "alice", "alice", "alice"),
	})
	require.Equal(t, StatusVerified, out.Status)
	require.Equal(t, 10, out.Points)
}

func TestVerify_PartialProration(t *testing.T) {
	e := newTestEngine(t)

	out := e.Verify(Input{
		Definition: weeklyPost(10),
		Window:     week,
		Evidence:   []Evidence{urlEvidence()},
		Signals:    signalsFrom(SignalCommentReceived, "alice"),
	})
	require.Equal(t, StatusPartiallyVerified, out.Status)
	require.Equal(t, 3, out.Points)
	require.Contains(t, out.Notes, "1 of 3 signals observed")
}

func TestVerify_RequireAllUsesLimitingThreshold(t *testing.T) {
	e := newTestEngine(t)

	day1 := week.Start.Add(10 * time.Hour)
	day2 := week.Start.Add(34 * time.Hour)
	signals := []Signal{
		{Kind: SignalCommitPushed, Actor: "me", HappenedAt: day1},
		{Kind: SignalCommitPushed, Actor: "me", HappenedAt: day1.Add(time.Hour)},
		{Kind: SignalCommitPushed, Actor: "me", HappenedAt: day1.Add(2 * time.Hour)},
		{Kind: SignalCommitPushed, Actor: "me", HappenedAt: day2},
		{Kind: SignalCommitPushed, Actor: "me", HappenedAt: day2.Add(time.Hour)},
		{Kind: SignalCommitPushed, Actor: "me", HappenedAt: day2.Add(2 * time.Hour)},
	}

	out := e.Verify(Input{
		Definition: Definition{Code: CodeGitHubCommitStreak, BasePoints: 20},
		Window:     week,
		Evidence:   []Evidence{{Kind: EvidenceURL, URL: "https://github.com/me/repo"}},
		Signals:    signals,
	})
	require.Equal(t, StatusPartiallyVerified, out.Status)
	require.Equal(t, 10, out.Points)
	require.Contains(t, out.Notes, "2 of 4 active days observed")
}

func TestVerify_SignalsOutsideWindowOrKindIgnored(t *testing.T) {
	e := newTestEngine(t)

	signals := []Signal{
		{Kind: SignalPostReaction, Actor: "a", HappenedAt: week.Start.Add(-time.Millisecond)},
		{Kind: SignalPostReaction, Actor: "b", HappenedAt: week.End.Add(time.Millisecond)},
		{Kind: SignalCommitPushed, Actor: "c", HappenedAt: week.Start.Add(time.Hour)},
	}

	out := e.Verify(Input{Definition: weeklyPost(10), Window: week, Evidence: []Evidence{urlEvidence()}, Signals: signals})
	require.Equal(t, StatusSubmitted, out.Status)
	require.Equal(t, 8, out.Points)
}

func TestVerify_WindowBoundsInclusive(t *testing.T) {
	e := newTestEngine(t)

	signals := []Signal{
		{Kind: SignalPostReaction, Actor: "a", HappenedAt: week.Start},
		{Kind: SignalPostReaction, Actor: "b", HappenedAt: week.End},
		{Kind: SignalPostShared, Actor: "c", HappenedAt: week.Start.Add(time.Hour)},
	}

	out := e.Verify(Input{Definition: weeklyPost(10), Window: week, Evidence: []Evidence{urlEvidence()}, Signals: signals})
	require.Equal(t, StatusVerified, out.Status)
}

func TestVerify_RejectedEvidenceIgnored(t *testing.T) {
	e := newTestEngine(t)

	rejected := urlEvidence()
	rejected.Outcome = OutcomeRejected

	out := e.Verify(Input{Definition: weeklyPost(10), Window: week, Evidence: []Evidence{rejected}})
	require.Equal(t, StatusNotStarted, out.Status)
	require.Zero(t, out.Points)
}

func TestVerify_ApprovedEvidenceVerifies(t *testing.T) {
	e := newTestEngine(t)

	approved := urlEvidence()
	approved.Outcome = OutcomeApproved

	out := e.Verify(Input{Definition: weeklyPost(10), Window: week, Evidence: []Evidence{approved}})
	require.Equal(t, StatusVerified, out.Status)
	require.Equal(t, 10, out.Points)
}

func TestVerify_UnknownCode(t *testing.T) {
	e := newTestEngine(t)
	def := Definition{Code: "linkedin.retired-task", BasePoints: 10}

	out := e.Verify(Input{Definition: def, Window: week, Evidence: []Evidence{urlEvidence()}})
	require.Equal(t, StatusSubmitted, out.Status)
	require.Equal(t, 5, out.Points)
	require.Contains(t, out.Notes, "no verification rule for linkedin.retired-task")

	out = e.Verify(Input{Definition: def, Window: week})
	require.Equal(t, StatusNotStarted, out.Status)
	require.Zero(t, out.Points)
	require.Len(t, out.Notes, 1)
}

func TestVerify_EvidenceOnlyRules(t *testing.T) {
	e := newTestEngine(t)

	cases := []struct {
		name     string
		def      Definition
		evidence []Evidence
		status   Status
		points   int
	}{
		{
			name:     "resume file verifies",
			def:      Definition{Code: CodeCareerResumeRefresh, BasePoints: 10},
			evidence: []Evidence{{Kind: EvidenceFile, FileRef: "resumes/v2.pdf"}},
			status:   StatusVerified,
			points:   10,
		},
		{
			name:     "resume url is a claim",
			def:      Definition{Code: CodeCareerResumeRefresh, BasePoints: 10},
			evidence: []Evidence{{Kind: EvidenceURL, URL: "https://example.com/cv"}},
			status:   StatusSubmitted,
			points:   6,
		},
		{
			name: "applications export partial",
			def:  Definition{Code: CodeJobHuntApplications, BasePoints: 20},
			evidence: []Evidence{{Kind: EvidenceExport, Payload: map[string]any{
				PayloadApplications: []any{"a", "b", "c"},
			}}},
			status: StatusPartiallyVerified,
			points: 12,
		},
		{
			name: "applications export complete",
			def:  Definition{Code: CodeJobHuntApplications, BasePoints: 20},
			evidence: []Evidence{{Kind: EvidenceExport, Payload: map[string]any{
				PayloadApplications: []any{"a", "b", "c", "d", "e", "f"},
			}}},
			status: StatusVerified,
			points: 20,
		},
		{
			name:     "portfolio domain proven",
			def:      Definition{Code: CodeCareerPortfolioDomain, BasePoints: 15},
			evidence: []Evidence{{Kind: EvidenceURL, URL: "https://me.dev", Payload: map[string]any{PayloadDomainVerified: true}}},
			status:   StatusVerified,
			points:   15,
		},
		{
			name:     "portfolio domain unproven",
			def:      Definition{Code: CodeCareerPortfolioDomain, BasePoints: 15},
			evidence: []Evidence{{Kind: EvidenceURL, URL: "https://me.dev", Payload: map[string]any{PayloadDomainVerified: false}}},
			status:   StatusSubmitted,
			points:   7,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := e.Verify(Input{Definition: tc.def, Window: week, Evidence: tc.evidence})
			require.Equal(t, tc.status, out.Status)
			require.Equal(t, tc.points, out.Points)
		})
	}
}

func TestVerify_CatalogBonus(t *testing.T) {
	e := newTestEngine(t)

	def := weeklyPost(10)
	def.Bonuses = []Bonus{
		{Name: "viral week", Expression: "signal_count >= 3 && kinds['post-reaction'] >= 2", Points: 4},
		{Name: "never", Expression: "signal_count > 100", Points: 50},
		{Name: "broken", Expression: "signal_count +", Points: 3},
	}

	out := e.Verify(Input{
		Definition: def,
		Window:     week,
		Evidence:   []Evidence{urlEvidence()},
		Signals:    signalsFrom(SignalPostReaction, "alice", "bob", "carol"),
	})
	require.Equal(t, StatusVerified, out.Status)
	require.Equal(t, 19, out.Points)
	require.Contains(t, out.Notes, "+4 points for viral week")

	var skipped bool
	for _, n := range out.Notes {
		if len(n) > 12 && n[:12] == "bonus broken" {
			skipped = true
		}
	}
	require.True(t, skipped)
	require.Equal(t, 10+5+4+50+3, e.MaxPoints(def))
}

func TestVerify_CatalogBonusOnlyWhenVerified(t *testing.T) {
	e := newTestEngine(t)

	def := weeklyPost(10)
	def.Bonuses = []Bonus{{Name: "always", Expression: "true", Points: 4}}

	out := e.Verify(Input{Definition: def, Window: week, Evidence: []Evidence{urlEvidence()}})
	require.Equal(t, StatusSubmitted, out.Status)
	require.Equal(t, 8, out.Points)
}

func TestVerify_PointsBounded(t *testing.T) {
	e := newTestEngine(t)

	evidenceSets := [][]Evidence{
		nil,
		{urlEvidence()},
		{{Kind: EvidenceText, Text: "done"}},
		{{Kind: EvidenceFile, FileRef: "f"}, {Kind: EvidenceScreenshot, FileRef: "s"}},
		{{Kind: EvidenceExport, Payload: map[string]any{PayloadItems: []any{1, 2, 3, 4, 5, 6, 7}}}},
		{{Kind: EvidenceURL, Payload: map[string]any{PayloadDomainVerified: true}}},
	}

	var signals []Signal
	for i := 0; i < 40; i++ {
		for _, kind := range []string{
			SignalPostReaction, SignalCommentPosted, SignalInviteAccepted, SignalProfileUpdated,
			SignalCommitPushed, SignalPullRequestMerged, SignalRepoUpdated, SignalLessonCompleted,
			SignalMessageSent,
		} {
			signals = append(signals, Signal{
				Kind:       kind,
				Actor:      fmt.Sprintf("actor-%d", i%7),
				HappenedAt: week.Start.Add(time.Duration(i) * 4 * time.Hour),
			})
		}
	}

	for _, code := range e.Registry().Codes() {
		for _, base := range []int{0, 1, 10, 37} {
			def := Definition{Code: code, BasePoints: base}
			for _, ev := range evidenceSets {
				for _, n := range []int{0, 1, 2, 5, len(signals)} {
					out := e.Verify(Input{Definition: def, Window: week, Evidence: ev, Signals: signals[:n]})
					require.GreaterOrEqual(t, out.Points, 0, code)
					require.LessOrEqual(t, out.Points, e.MaxPoints(def), code)
					require.True(t, out.Status.Valid())
					require.NotEqual(t, StatusRejected, out.Status)
				}
			}
		}
	}
}

func TestRegistry_DuplicateCode(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&ThresholdRule{RuleCode: "x.one"}))
	require.Error(t, r.Register(&ThresholdRule{RuleCode: "x.one"}))
	require.Error(t, r.Register(&ThresholdRule{RuleCode: " "}))

	_, ok := r.Lookup("x.one")
	require.True(t, ok)
	require.Equal(t, []string{"x.one"}, r.Codes())
}

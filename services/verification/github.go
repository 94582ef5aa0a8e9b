package verification

const (
	CodeGitHubCommitStreak = "github.commit-streak"
	CodeGitHubPullRequest  = "github.pull-request"
	CodeGitHubReadmePolish = "github.readme-polish"
)

const (
	SignalCommitPushed      = "commit-pushed"
	SignalPullRequestOpened = "pull-request-opened"
	SignalPullRequestMerged = "pull-request-merged"
	SignalRepoUpdated       = "repo-updated"
)

func GitHubRules() []Rule {
	return []Rule{
		&ThresholdRule{
			RuleCode:    CodeGitHubCommitStreak,
			SignalKinds: []string{SignalCommitPushed},
			MinSignals:  5,
			MinDays:     4,
			RequireAll:  true,
			Fractions: map[EvidenceKind]int{
				EvidenceURL: 50,
			},
			Bonuses: []ThresholdBonus{
				{Label: "15 commits this week", MinSignals: 15, Points: 5},
			},
		},
		&ThresholdRule{
			RuleCode:    CodeGitHubPullRequest,
			SignalKinds: []string{SignalPullRequestOpened, SignalPullRequestMerged},
			MinSignals:  1,
			Fractions: map[EvidenceKind]int{
				EvidenceURL: 70,
			},
			Bonuses: []ThresholdBonus{
				{Label: "reviews from 2 collaborators", MinActors: 2, Points: 5},
			},
		},
		&ThresholdRule{
			RuleCode:    CodeGitHubReadmePolish,
			SignalKinds: []string{SignalRepoUpdated},
			MinSignals:  1,
			Fractions: map[EvidenceKind]int{
				EvidenceURL:        70,
				EvidenceScreenshot: 80,
			},
		},
	}
}

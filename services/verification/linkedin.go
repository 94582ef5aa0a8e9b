package verification

const (
	CodeLinkedInWeeklyPost        = "linkedin.weekly-post"
	CodeLinkedInCommentOnPosts    = "linkedin.comment-on-posts"
	CodeLinkedInConnectionInvites = "linkedin.connection-invites"
	CodeLinkedInProfileRefresh    = "linkedin.profile-refresh"
)

// LinkedIn signal kinds.
const (
	SignalPostReaction    = "post-reaction"
	SignalCommentReceived = "comment-received"
	SignalPostShared      = "post-shared"
	SignalCommentPosted   = "comment-posted"
	SignalInviteAccepted  = "invite-accepted"
	SignalProfileUpdated  = "profile-updated"
)

// claimFractions weights a bare URL claim below a captured artifact.
var claimFractions = map[EvidenceKind]int{
	EvidenceURL:        80,
	EvidenceScreenshot: 90,
	EvidenceFile:       90,
	EvidenceText:       50,
}

func LinkedInRules() []Rule {
	return []Rule{
		&ThresholdRule{
			RuleCode:    CodeLinkedInWeeklyPost,
			SignalKinds: []string{SignalPostReaction, SignalCommentReceived, SignalPostShared},
			MinSignals:  3,
			Fractions:   claimFractions,
			Bonuses: []ThresholdBonus{
				{Label: "3 distinct actors engaging", MinActors: 3, Points: 5},
			},
		},
		&ThresholdRule{
			RuleCode:    CodeLinkedInCommentOnPosts,
			SignalKinds: []string{SignalCommentPosted},
			MinSignals:  5,
			MinActors:   3,
			RequireAll:  true,
			Fractions:   claimFractions,
			Bonuses: []ThresholdBonus{
				{Label: "10 thoughtful comments", MinSignals: 10, Points: 5},
			},
		},
		&ThresholdRule{
			RuleCode:    CodeLinkedInConnectionInvites,
			SignalKinds: []string{SignalInviteAccepted},
			MinSignals:  3,
			Fractions: map[EvidenceKind]int{
				EvidenceScreenshot: 70,
				EvidenceURL:        60,
			},
			Bonuses: []ThresholdBonus{
				{Label: "10 accepted invites", MinSignals: 10, Points: 5},
			},
		},
		&ThresholdRule{
			RuleCode:    CodeLinkedInProfileRefresh,
			SignalKinds: []string{SignalProfileUpdated},
			MinSignals:  1,
			Fractions: map[EvidenceKind]int{
				EvidenceScreenshot: 80,
				EvidenceURL:        60,
			},
		},
	}
}

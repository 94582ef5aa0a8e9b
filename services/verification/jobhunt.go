package verification

const (
	CodeJobHuntApplications     = "jobhunt.applications"
	CodeJobHuntReferralOutreach = "jobhunt.referral-outreach"
	CodeJobHuntFollowUp         = "jobhunt.follow-up"
)

const (
	SignalMessageSent    = "message-sent"
	SignalMessageReplied = "message-replied"
)

const minApplications = 5

func JobHuntRules() []Rule {
	return []Rule{
		&ThresholdRule{
			RuleCode: CodeJobHuntApplications,
			Content:  ExportAtLeast(minApplications),
			Fractions: map[EvidenceKind]int{
				EvidenceScreenshot: 50,
				EvidenceText:       20,
			},
		},
		&ThresholdRule{
			RuleCode:    CodeJobHuntReferralOutreach,
			SignalKinds: []string{SignalMessageSent, SignalMessageReplied},
			MinSignals:  3,
			MinActors:   3,
			RequireAll:  true,
			Fractions: map[EvidenceKind]int{
				EvidenceScreenshot: 70,
				EvidenceText:       40,
			},
			Bonuses: []ThresholdBonus{
				{Label: "5 people reached", MinActors: 5, Points: 5},
			},
		},
		&ThresholdRule{
			RuleCode:       CodeJobHuntFollowUp,
			VerifyingKinds: []EvidenceKind{EvidenceScreenshot, EvidenceFile},
			Fractions: map[EvidenceKind]int{
				EvidenceText: 50,
			},
		},
	}
}

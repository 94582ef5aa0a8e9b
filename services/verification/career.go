package verification

const (
	CodeCareerResumeRefresh   = "career.resume-refresh"
	CodeCareerMockInterview   = "career.mock-interview"
	CodeCareerPortfolioDomain = "career.portfolio-domain"
	CodeCareerCourseProgress  = "career.course-progress"
)

const SignalLessonCompleted = "lesson-completed"

func CareerRules() []Rule {
	return []Rule{
		&ThresholdRule{
			RuleCode:       CodeCareerResumeRefresh,
			VerifyingKinds: []EvidenceKind{EvidenceFile, EvidenceExport},
			Fractions: map[EvidenceKind]int{
				EvidenceURL:  60,
				EvidenceText: 30,
			},
		},
		&ThresholdRule{
			RuleCode:       CodeCareerMockInterview,
			VerifyingKinds: []EvidenceKind{EvidenceFile, EvidenceScreenshot},
			Fractions: map[EvidenceKind]int{
				EvidenceText: 40,
			},
		},
		&ThresholdRule{
			RuleCode: CodeCareerPortfolioDomain,
			Content:  DomainVerified(),
			Fractions: map[EvidenceKind]int{
				EvidenceURL: 50,
			},
		},
		&ThresholdRule{
			RuleCode:    CodeCareerCourseProgress,
			SignalKinds: []string{SignalLessonCompleted},
			MinSignals:  3,
			Fractions: map[EvidenceKind]int{
				EvidenceScreenshot: 60,
				EvidenceText:       30,
			},
			Bonuses: []ThresholdBonus{
				{Label: "6 lessons completed", MinSignals: 6, Points: 5},
			},
		},
	}
}

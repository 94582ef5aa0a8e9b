package catalog

import (
	v "careerloop-engine/services/verification"
)

var (
	claimKinds    = []v.EvidenceKind{v.EvidenceURL, v.EvidenceScreenshot, v.EvidenceFile, v.EvidenceText}
	artifactKinds = []v.EvidenceKind{v.EvidenceFile, v.EvidenceScreenshot, v.EvidenceText}
)

// Defaults is the built-in weekly catalog, one definition per registered rule.
func Defaults() []DefinitionInput {
	return []DefinitionInput{
		{
			Code: v.CodeLinkedInWeeklyPost, Vertical: VerticalLinkedIn, Title: "Publish a LinkedIn post",
			Description:           "Share one post about what you are learning or building this week.",
			AcceptedEvidenceKinds: claimKinds, BasePoints: 10, DayOffset: 0,
			Bonuses: []v.Bonus{{Name: "conversation starter", Expression: "kinds['comment-received'] >= 3", Points: 3}},
		},
		{
			Code: v.CodeGitHubCommitStreak, Vertical: VerticalGitHub, Title: "Keep a commit streak",
			Description:           "Push commits on at least four different days.",
			AcceptedEvidenceKinds: []v.EvidenceKind{v.EvidenceURL, v.EvidenceScreenshot}, BasePoints: 20, DayOffset: 0,
		},
		{
			Code: v.CodeLinkedInCommentOnPosts, Vertical: VerticalLinkedIn, Title: "Comment on industry posts",
			Description:           "Leave five thoughtful comments across at least three authors.",
			AcceptedEvidenceKinds: claimKinds, BasePoints: 10, DayOffset: 1,
		},
		{
			Code: v.CodeCareerResumeRefresh, Vertical: VerticalCareer, Title: "Refresh your resume",
			Description:           "Upload the updated resume or its export.",
			AcceptedEvidenceKinds: []v.EvidenceKind{v.EvidenceFile, v.EvidenceExport, v.EvidenceURL, v.EvidenceText}, BasePoints: 15, DayOffset: 1,
		},
		{
			Code: v.CodeJobHuntApplications, Vertical: VerticalJobHunt, Title: "Send five applications",
			Description:           "Export your application tracker with at least five entries.",
			AcceptedEvidenceKinds: []v.EvidenceKind{v.EvidenceExport, v.EvidenceScreenshot, v.EvidenceText}, BasePoints: 20, DayOffset: 2,
			Bonuses: []v.Bonus{{Name: "ten applications", Expression: "export_items >= 10", Points: 5}},
		},
		{
			Code: v.CodeLinkedInConnectionInvites, Vertical: VerticalLinkedIn, Title: "Grow your network",
			Description:           "Get three connection invites accepted.",
			AcceptedEvidenceKinds: []v.EvidenceKind{v.EvidenceScreenshot, v.EvidenceURL}, BasePoints: 10, DayOffset: 2,
		},
		{
			Code: v.CodeGitHubPullRequest, Vertical: VerticalGitHub, Title: "Open a pull request",
			Description:           "Open or merge a pull request on any public repository.",
			AcceptedEvidenceKinds: []v.EvidenceKind{v.EvidenceURL}, BasePoints: 15, DayOffset: 3,
		},
		{
			Code: v.CodeCareerCourseProgress, Vertical: VerticalCareer, Title: "Complete three lessons",
			Description:           "Finish three lessons of your current course.",
			AcceptedEvidenceKinds: []v.EvidenceKind{v.EvidenceScreenshot, v.EvidenceText}, BasePoints: 10, DayOffset: 3,
		},
		{
			Code: v.CodeJobHuntReferralOutreach, Vertical: VerticalJobHunt, Title: "Ask for referrals",
			Description:           "Reach out to three people for a referral.",
			AcceptedEvidenceKinds: []v.EvidenceKind{v.EvidenceScreenshot, v.EvidenceText}, BasePoints: 15, DayOffset: 4,
		},
		{
			Code: v.CodeLinkedInProfileRefresh, Vertical: VerticalLinkedIn, Title: "Refresh your LinkedIn profile",
			Description:           "Update your headline, about section or featured items.",
			AcceptedEvidenceKinds: []v.EvidenceKind{v.EvidenceScreenshot, v.EvidenceURL}, BasePoints: 5, DayOffset: 4,
		},
		{
			Code: v.CodeGitHubReadmePolish, Vertical: VerticalGitHub, Title: "Polish a README",
			Description:           "Improve the README of a pinned repository.",
			AcceptedEvidenceKinds: []v.EvidenceKind{v.EvidenceURL, v.EvidenceScreenshot}, BasePoints: 5, DayOffset: 5,
		},
		{
			Code: v.CodeCareerMockInterview, Vertical: VerticalCareer, Title: "Do a mock interview",
			Description:           "Record or screenshot a mock interview session.",
			AcceptedEvidenceKinds: artifactKinds, BasePoints: 15, DayOffset: 5,
		},
		{
			Code: v.CodeCareerPortfolioDomain, Vertical: VerticalCareer, Title: "Prove your portfolio domain",
			Description:           "Add the TXT record shown in your profile to your portfolio domain.",
			AcceptedEvidenceKinds: []v.EvidenceKind{v.EvidenceURL}, BasePoints: 15, DayOffset: 6,
		},
		{
			Code: v.CodeJobHuntFollowUp, Vertical: VerticalJobHunt, Title: "Follow up on applications",
			Description:           "Send follow-ups on last week's applications.",
			AcceptedEvidenceKinds: artifactKinds, BasePoints: 5, DayOffset: 6,
		},
	}
}

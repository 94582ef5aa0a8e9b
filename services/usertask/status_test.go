package usertask

import (
	"testing"

	v "careerloop-engine/services/verification"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(v.StatusNotStarted, v.StatusSubmitted))
	require.True(t, CanTransition(v.StatusPartiallyVerified, v.StatusVerified))
	require.True(t, CanTransition(v.StatusVerified, v.StatusVerified))
	require.False(t, CanTransition(v.StatusVerified, v.StatusSubmitted))
	require.False(t, CanTransition(v.StatusRejected, v.StatusVerified))
	require.True(t, CanTransition(v.StatusPartiallyVerified, v.StatusSubmitted))
	require.True(t, CanTransition(v.StatusSubmitted, v.StatusNotStarted))
	require.False(t, CanTransition(v.StatusVerified, v.StatusNotStarted))
}

func TestMerge(t *testing.T) {
	cases := []struct {
		name         string
		stored       v.Status
		storedPoints int
		out          v.Outcome
		want         Merged
	}{
		{
			name:   "promotes submitted to verified",
			stored: v.StatusSubmitted, storedPoints: 8,
			out:  v.Outcome{Status: v.StatusVerified, Points: 15},
			want: Merged{Status: v.StatusVerified, Points: 15, Changed: true},
		},
		{
			name:   "verified never regresses",
			stored: v.StatusVerified, storedPoints: 15,
			out:  v.Outcome{Status: v.StatusSubmitted, Points: 8},
			want: Merged{Status: v.StatusVerified, Points: 15, Kept: true},
		},
		{
			name:   "partial falls back when its evidence is rejected",
			stored: v.StatusPartiallyVerified, storedPoints: 3,
			out:  v.Outcome{Status: v.StatusNotStarted},
			want: Merged{Status: v.StatusNotStarted, Points: 0, Changed: true},
		},
		{
			name:   "submitted loses credit when no evidence remains",
			stored: v.StatusSubmitted, storedPoints: 8,
			out:  v.Outcome{Status: v.StatusNotStarted},
			want: Merged{Status: v.StatusNotStarted, Points: 0, Changed: true},
		},
		{
			name:   "partial drops to submitted when signals no longer count",
			stored: v.StatusPartiallyVerified, storedPoints: 6,
			out:  v.Outcome{Status: v.StatusSubmitted, Points: 8},
			want: Merged{Status: v.StatusSubmitted, Points: 8, Changed: true},
		},
		{
			name:   "rejected is untouched",
			stored: v.StatusRejected,
			out:    v.Outcome{Status: v.StatusVerified, Points: 10},
			want:   Merged{Status: v.StatusRejected, Kept: true},
		},
		{
			name:   "same outcome is unchanged",
			stored: v.StatusVerified, storedPoints: 15,
			out:  v.Outcome{Status: v.StatusVerified, Points: 15},
			want: Merged{Status: v.StatusVerified, Points: 15},
		},
		{
			name:   "verified picks up a new bonus",
			stored: v.StatusVerified, storedPoints: 10,
			out:  v.Outcome{Status: v.StatusVerified, Points: 15},
			want: Merged{Status: v.StatusVerified, Points: 15, Changed: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Merge(tc.stored, tc.storedPoints, tc.out))
		})
	}
}

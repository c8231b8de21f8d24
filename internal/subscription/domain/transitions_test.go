package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to SubscriptionStatus
		want     bool
	}{
		{StatusDraft, StatusActive, true},
		{StatusDraft, StatusCanceled, true},
		{StatusDraft, StatusPastDue, false},
		{StatusTrial, StatusActive, true},
		{StatusTrial, StatusCanceled, true},
		{StatusTrial, StatusPaused, false},
		{StatusActive, StatusPastDue, true},
		{StatusActive, StatusPaused, true},
		{StatusActive, StatusCanceled, true},
		{StatusActive, StatusDraft, false},
		{StatusPastDue, StatusActive, true},
		{StatusPastDue, StatusCanceled, true},
		{StatusPastDue, StatusPaused, false},
		{StatusPaused, StatusActive, true},
		{StatusPaused, StatusCanceled, false},
		{StatusCanceled, StatusActive, false},
		{StatusCanceled, StatusDraft, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to InvoiceStatus
		want     bool
	}{
		{StatusDraft, StatusFinal, true},
		{StatusDraft, StatusCanceled, true},
		{StatusDraft, StatusPaid, false},
		{StatusDraft, StatusOverdue, false},
		{StatusFinal, StatusPaid, true},
		{StatusFinal, StatusOverdue, true},
		{StatusFinal, StatusCanceled, true},
		{StatusFinal, StatusDraft, false},
		{StatusOverdue, StatusPaid, true},
		{StatusOverdue, StatusCanceled, true},
		{StatusOverdue, StatusFinal, false},
		{StatusPaid, StatusCanceled, false},
		{StatusPaid, StatusDraft, false},
		{StatusCanceled, StatusDraft, false},
		{StatusCanceled, StatusFinal, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

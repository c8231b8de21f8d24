package domain

// allowedTransitions is the subscription status machine. draft and trial are
// entry states; canceled is terminal.
var allowedTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	StatusDraft:   {StatusActive, StatusCanceled},
	StatusTrial:   {StatusActive, StatusCanceled},
	StatusActive:  {StatusPastDue, StatusPaused, StatusCanceled},
	StatusPastDue: {StatusActive, StatusCanceled},
	StatusPaused:  {StatusActive},
}

// CanTransition reports whether the status machine allows from → to.
func CanTransition(from, to SubscriptionStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

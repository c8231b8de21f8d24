package events

// Billing event types emitted through the outbox.
const (
	EventSubscriptionCreated   = "subscription.created"
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionCanceled  = "subscription.canceled"
	EventPeriodRolled          = "subscription.period_rolled"
	EventInvoiceGenerated      = "invoice.generated"
	EventInvoiceFinalized      = "invoice.finalized"
	EventInvoicePaid           = "invoice.paid"
	EventInvoiceVoided         = "invoice.voided"
	EventUsageRecorded         = "usage.recorded"
)

// SubscriptionPayload captures the minimal data consumers need to react to a
// subscription lifecycle event.
type SubscriptionPayload struct {
	SubscriptionID string `json:"subscription_id"`
	CustomerOrgID  string `json:"customer_org_id"`
	PlanID         string `json:"plan_id,omitempty"`
	OldStatus      string `json:"old_status,omitempty"`
	NewStatus      string `json:"new_status,omitempty"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p SubscriptionPayload) ToMap() map[string]any {
	payload := map[string]any{
		"subscription_id": p.SubscriptionID,
		"customer_org_id": p.CustomerOrgID,
	}
	if p.PlanID != "" {
		payload["plan_id"] = p.PlanID
	}
	if p.OldStatus != "" {
		payload["old_status"] = p.OldStatus
	}
	if p.NewStatus != "" {
		payload["new_status"] = p.NewStatus
	}
	return payload
}

// InvoicePayload captures the minimal data consumers need to react to an
// invoice event.
type InvoicePayload struct {
	InvoiceID      string `json:"invoice_id"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	TotalCents     int64  `json:"total_cents"`
	Currency       string `json:"currency"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p InvoicePayload) ToMap() map[string]any {
	payload := map[string]any{
		"invoice_id":  p.InvoiceID,
		"total_cents": p.TotalCents,
		"currency":    p.Currency,
	}
	if p.SubscriptionID != "" {
		payload["subscription_id"] = p.SubscriptionID
	}
	return payload
}

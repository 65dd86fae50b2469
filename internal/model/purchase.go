package model

import "time"

// RejectReason classifies why a purchase was not accepted.
type RejectReason string

const (
	ReasonInvalidRequest RejectReason = "invalid_request"
	ReasonShopClosed     RejectReason = "shop_closed"
	ReasonQuotaExceeded  RejectReason = "quota_exceeded"
	ReasonOutOfStock     RejectReason = "out_of_stock"
)

// PurchaseOutcome is the result of a purchase attempt that reached a decision.
// Storage failures are reported as errors, not outcomes.
type PurchaseOutcome struct {
	Accepted bool           `json:"accepted"`
	Reason   RejectReason   `json:"reason,omitempty"`
	Detail   string         `json:"detail,omitempty"`
	Event    *PurchaseEvent `json:"event,omitempty"`
	// Remaining is the actor's quota left for the category; set on
	// acceptance and on quota_exceeded.
	Remaining int `json:"remaining"`
	// RetryAfter is the cooldown until quota frees up (quota_exceeded only).
	RetryAfter time.Duration `json:"retry_after_ns,omitempty"`
}

// Accepted builds an accepted outcome.
func Accepted(ev PurchaseEvent, remaining int) PurchaseOutcome {
	return PurchaseOutcome{Accepted: true, Event: &ev, Remaining: remaining}
}

// Rejected builds a rejected outcome.
func Rejected(reason RejectReason, detail string) PurchaseOutcome {
	return PurchaseOutcome{Reason: reason, Detail: detail}
}

// Err returns the sentinel error matching the rejection reason, or nil.
func (o PurchaseOutcome) Err() error {
	switch o.Reason {
	case ReasonInvalidRequest:
		return ErrInvalidRequest
	case ReasonShopClosed:
		return ErrShopClosed
	case ReasonQuotaExceeded:
		return ErrQuotaExceeded
	case ReasonOutOfStock:
		return ErrOutOfStock
	}
	return nil
}

package domain

import "time"

// Session is the backend's proof of a completed login.
// It authorizes exactly one withdrawal of BoundItemID and is never persisted.
type Session struct {
	Key          string
	AccountLabel string
	BoundItemID  string
	IssuedAt     time.Time
}

// AuthorizesItem reports whether the session may be used to withdraw itemID.
func (s *Session) AuthorizesItem(itemID string) bool {
	return s != nil && s.Key != "" && itemID != "" && s.BoundItemID == itemID
}

// WithdrawalRequest is the payload submitted to the custody backend.
// IdempotencyKey travels as a header, not in the body.
type WithdrawalRequest struct {
	ItemID         string `json:"itemId"`
	SessionKey     string `json:"sessionKey"`
	IdempotencyKey string `json:"-"`
}

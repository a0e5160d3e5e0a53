package domain

import (
	"fmt"
	"time"
)

// Verification purposes. The purpose is part of the session key, so the same
// code can never satisfy two different flows.
const (
	PurposeFinishRegistration = "finish_registration"
	PurposeForgotPassword     = "forgot_password"
)

// Delivery methods for verification codes.
const (
	DeliveryEmail = "email"
	DeliverySMS   = "sms"
)

// VerificationSession links a one-time code to a contact address and purpose.
// It lives only in the temporary store and is deleted on successful
// validation; ExpiresAt is a Unix timestamp doubling as the store TTL.
type VerificationSession struct {
	RecordKey      string `json:"record_key" dynamodbav:"record_key"`
	Contact        string `json:"contact" dynamodbav:"contact"`
	Code           string `json:"code" dynamodbav:"code"`
	Purpose        string `json:"purpose" dynamodbav:"purpose"`
	DeliveryMethod string `json:"delivery_method" dynamodbav:"delivery_method"`
	LinkedDraftKey string `json:"linked_draft_key,omitempty" dynamodbav:"linked_draft_key"`
	CreatedAt      int64  `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt      int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

// Expired reports whether the session is logically past its TTL. Callers must
// use this rather than trusting the store's physical eviction timing.
func (s *VerificationSession) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.Unix()
}

// RegistrationPayload is the staged account data awaiting promotion.
// PasswordHash is always a one-way hash; plaintext never reaches the store.
type RegistrationPayload struct {
	Username     string  `json:"username" dynamodbav:"username"`
	Email        string  `json:"email" dynamodbav:"email"`
	Phone        *string `json:"phone,omitempty" dynamodbav:"phone"`
	FirstName    string  `json:"first_name" dynamodbav:"first_name"`
	LastName     string  `json:"last_name" dynamodbav:"last_name"`
	PasswordHash string  `json:"password_hash" dynamodbav:"password_hash"`
}

// RegistrationDraft stages a registration payload next to its verification
// session. Both records share a clock origin and TTL.
type RegistrationDraft struct {
	RecordKey string              `json:"record_key" dynamodbav:"record_key"`
	Contact   string              `json:"contact" dynamodbav:"contact"`
	Code      string              `json:"code" dynamodbav:"code"`
	Payload   RegistrationPayload `json:"payload" dynamodbav:"payload"`
	CreatedAt int64               `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt int64               `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

// Expired reports whether the draft is logically past its TTL.
func (d *RegistrationDraft) Expired(now time.Time) bool {
	return d.ExpiresAt <= now.Unix()
}

// SessionKey builds the temporary-store key for a verification session.
// Both store backends use this exact layout.
func SessionKey(purpose, contact, code string) string {
	return fmt.Sprintf("verification:%s:%s:%s", purpose, contact, code)
}

// DraftKey builds the temporary-store key for a registration draft.
func DraftKey(contact, code string) string {
	return fmt.Sprintf("registration:%s:%s", contact, code)
}

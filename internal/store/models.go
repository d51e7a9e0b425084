package store

import "time"

// Consent is the recorded opt-in decision for one chat.
type Consent string

const (
	ConsentUnset    Consent = "unset"
	ConsentAccepted Consent = "accepted"
	ConsentOptedOut Consent = "opted_out"
)

// MessageRecord is one outbound message and its delivery state. JSON field
// names follow the legacy API contract.
type MessageRecord struct {
	MessageID   string     `json:"messageId"`
	Phone       string     `json:"phone"`
	ChatID      string     `json:"chatId"`
	Content     string     `json:"content"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	ImageBase64 string     `json:"imageBase64,omitempty"`
	Ack         int        `json:"ack"`
	AckText     string     `json:"ackText"`
	AckDate     *time.Time `json:"ackDate,omitempty"`
	Date        time.Time  `json:"date"`
}

// ConsentRecord tracks the consent workflow state for one chat identifier.
// Records are created when a prompt is sent and resolved by the reply
// handler; they are never deleted.
type ConsentRecord struct {
	ChatID             string     `json:"chatId"`
	PendingConsent     bool       `json:"pendingConsent"`
	LastConsentMessage string     `json:"lastConsentMessage"`
	Consent            Consent    `json:"consent"`
	Date               *time.Time `json:"date,omitempty"`
}

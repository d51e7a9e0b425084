package types

// RequestSendMessage is the body of POST /send. At least one of Message,
// ImageURL or ImageBase64 must be present.
type RequestSendMessage struct {
	Phone       string `json:"phone"`
	Message     string `json:"message"`
	ImageURL    string `json:"imageUrl"`
	ImageBase64 string `json:"imageBase64"`
}

// RequestSendConsent is the body of POST /send-consent. Message overrides
// the default bilingual prompt when present.
type RequestSendConsent struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

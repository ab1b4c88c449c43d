package dto

type GerritWebhookResponse struct {
	MessageID string `json:"message_id"`
	EventType string `json:"event_type"`
}

// GerritEventHeader is the part of a webhook body the server needs before
// handing the raw payload to the stream.
type GerritEventHeader struct {
	Type string `json:"type"`
}

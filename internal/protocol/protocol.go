// Package protocol defines the JSON shapes shared by the HTTP API, the
// websocket hub and the settings page.
package protocol

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeRules carries the full ordered rule list after any change
	TypeRules MessageType = "rules"

	// TypeUsage is sent each time a shortcut expands
	TypeUsage MessageType = "usage"

	// TypeEnhance reports enhancement state transitions
	TypeEnhance MessageType = "enhance"

	// TypeListener reports pause and resume of expansion
	TypeListener MessageType = "listener"

	// TypeSyncRequest is sent by a client to request the current rules
	TypeSyncRequest MessageType = "sync_req"

	// TypePing can be used for application-level heartbeats if needed
	TypePing MessageType = "ping"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// Prompt is a rule as seen by API clients.
type Prompt struct {
	Shortcut string `json:"shortcut"`
	Prepend  string `json:"prepend,omitempty"`
	Postpend string `json:"postpend,omitempty"`
	Text     string `json:"text"`
	Trigger  string `json:"trigger,omitempty"`
}

// RulesPayload is the payload for TypeRules
type RulesPayload struct {
	Prompts []Prompt `json:"prompts"`
}

// UsagePayload is the payload for TypeUsage
type UsagePayload struct {
	Shortcut string `json:"shortcut"`
	Count    int    `json:"count"`
	LastUsed int64  `json:"last_used"` // unix millis
}

// EnhancePayload is the payload for TypeEnhance
type EnhancePayload struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// ListenerPayload is the payload for TypeListener and the body of
// POST /api/listener
type ListenerPayload struct {
	Paused bool `json:"paused"`
}

// StatusResponse is returned by GET /api/status
type StatusResponse struct {
	Paused     bool   `json:"paused"`
	Rules      int    `json:"rules"`
	Enhancing  bool   `json:"enhancing"`
	Configured bool   `json:"configured"`
	Model      string `json:"model,omitempty"`
	Hooked     bool   `json:"hooked"`
	Version    string `json:"version"`
}

// SettingsResponse is returned by GET /api/settings. The key itself is
// never sent back.
type SettingsResponse struct {
	Configured bool   `json:"configured"`
	Model      string `json:"model,omitempty"`
}

// SettingsRequest is the body of POST /api/settings
type SettingsRequest struct {
	APIKey string `json:"api_key"`
}

// TrackUsageRequest is the body of POST /api/prompts/track-usage
type TrackUsageRequest struct {
	Shortcut string `json:"shortcut"`
}

// Result is the status body returned by mutating endpoints
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

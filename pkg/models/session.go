package models

import "time"

// Session is one conversation between a user and the agent.
type Session struct {
	ID        string         `json:"id"`
	AppName   string         `json:"app_name"`
	UserID    string         `json:"user_id"`
	Title     string         `json:"title,omitempty"`
	State     map[string]any `json:"state,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Event is one persisted unit of conversation history: a user message,
// a model response, or a tool exchange. Events carry the same part
// structure as live responses so history reconstruction can reuse the
// live serialization path.
type Event struct {
	ID           string         `json:"id"`
	SessionID    string         `json:"session_id"`
	InvocationID string         `json:"invocation_id"`
	Author       string         `json:"author"`
	Parts        []ResponsePart `json:"parts"`
	Timestamp    time.Time      `json:"timestamp"`
}

// UserAuthored reports whether the event originated from the user.
// Tool results arrive with role "user" at the protocol level but are
// attributed to the agent; Author is the reliable discriminator.
func (e Event) UserAuthored() bool {
	return e.Author == "user"
}

// Message is a rendered conversation message for API consumers.
// Content is linear text with semantic tags inlined.
type Message struct {
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	InvocationID string    `json:"invocationId"`
}

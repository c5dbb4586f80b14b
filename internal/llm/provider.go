// Package llm wraps the text-generation backend used by the tutor.
package llm

import (
	"context"
	"encoding/json"
)

// Provider generates a completion for a prompt and conversation.
type Provider interface {
	// Generate returns the model output. With a Schema set the output is
	// JSON validated against it and exposed as Response.JSON.
	Generate(ctx context.Context, req Request) (*Response, error)
	ModelID() string
}

// Request is one completion call.
type Request struct {
	System   string
	Messages []Message
	// Schema requests structured JSON output.
	Schema      *Schema
	MaxTokens   int
	Temperature float64
}

// Role names who sent a message, using the backend's vocabulary.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Schema is a named JSON Schema document.
type Schema struct {
	Name       string
	Definition map[string]any
}

// Response carries the generated text. JSON is set only for schema requests.
type Response struct {
	Text       string
	JSON       json.RawMessage
	Model      string
	StopReason string
	Usage      Usage
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

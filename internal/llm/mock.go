package llm

import (
	"context"
	"sync"
)

// MockResponse is one scripted reply. Err takes precedence over Text.
type MockResponse struct {
	Text string
	Err  error
}

// MockProvider replays scripted replies in order and records requests.
// Schema requests are validated like the real provider.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	calls     []Request
}

func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

func (m *MockProvider) ModelID() string { return "mock" }

func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	if len(m.responses) == 0 {
		m.mu.Unlock()
		return nil, &ErrProviderUnavailable{}
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	m.mu.Unlock()

	if next.Err != nil {
		return nil, next.Err
	}
	resp := &Response{Text: next.Text, Model: "mock", StopReason: "end"}
	if req.Schema != nil {
		out, err := Validate(req.Schema, next.Text)
		if err != nil {
			return nil, err
		}
		resp.JSON = out
	}
	return resp, nil
}

// Calls returns a copy of the recorded requests.
func (m *MockProvider) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

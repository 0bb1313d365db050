package llm

import "context"

// MockClient returns canned completions for testing.
type MockClient struct {
	// Response is returned from every Complete call.
	Response string
	// Err, when set, is returned instead of Response.
	Err error
	// Calls records the user messages passed to Complete.
	Calls []string
}

// Complete records the call and returns the canned response or error.
func (m *MockClient) Complete(ctx context.Context, system, user string) (string, error) {
	m.Calls = append(m.Calls, user)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Close is a no-op.
func (m *MockClient) Close() error {
	return nil
}

package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of Client using testify/mock.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Complete(ctx context.Context, history []Message, prompt Prompt) (Completion, error) {
	args := m.Called(ctx, history, prompt)
	return args.Get(0).(Completion), args.Error(1)
}

package chathub_test

import (
	"anonchat/backend/internal/models"
	"context"

	"github.com/stretchr/testify/mock"
)

// MockPublisher is a mock implementation of the chathub.Publisher interface.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, n models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockClient is a mock implementation of the chathub.Client interface.
type MockClient struct {
	mock.Mock
	UserID      string
	RecvChannel chan models.Notification
}

func newMockClient(userID string) *MockClient {
	return &MockClient{
		UserID:      userID,
		RecvChannel: make(chan models.Notification, 10),
	}
}

func (m *MockClient) GetUserID() string                           { return m.UserID }
func (m *MockClient) GetSendChannel() chan<- models.Notification { return m.RecvChannel }
func (m *MockClient) Run()                                        { m.Called() }
func (m *MockClient) Close()                                      { m.Called() }

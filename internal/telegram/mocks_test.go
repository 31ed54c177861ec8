package telegram_test

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/mock"
)

// MockSender is a mock implementation of the telegram.Sender interface.
// Every sent text message is also pushed to Sent.
type MockSender struct {
	mock.Mock
	Sent chan tgbotapi.MessageConfig
}

func newMockSender() *MockSender {
	s := &MockSender{Sent: make(chan tgbotapi.MessageConfig, 32)}
	s.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil)
	return s
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.Sent <- msg
	}
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

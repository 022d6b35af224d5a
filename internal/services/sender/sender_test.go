package sender

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/entitlement-engine/internal/lib/smtp"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Session, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Session), args.Error(1)
}

func (m *MockTransport) From() string {
	args := m.Called()
	return args.String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	args := m.Called(from)
	return args.Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSMTPClient) Quit() error {
	args := m.Called()
	return args.Error(0)
}

type MockSMTPWriter struct {
	mock.Mock
}

func (m *MockSMTPWriter) Write(p []byte) (n int, err error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockSMTPWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func successfulSend(t *MockTransport, rcpt string) {
	mockClient := new(MockSMTPClient)
	mockWriter := new(MockSMTPWriter)

	t.On("From").Return("sender@example.com")
	t.On("Connect").Return(mockClient, nil).Once()
	mockClient.On("Mail", "sender@example.com").Return(nil).Once()
	mockClient.On("Rcpt", rcpt).Return(nil).Once()
	mockClient.On("Data").Return(mockWriter, nil).Once()
	mockWriter.On("Write", mock.AnythingOfType("[]uint8")).Return(100, nil).Once()
	mockWriter.On("Close").Return(nil).Once()
	mockClient.On("Quit").Return(nil).Once()
	mockClient.On("Close").Return(nil).Once()
}

func TestService_HandleNotification(t *testing.T) {
	endsAt := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)

	tests := []struct {
		name          string
		body          []byte
		setupMocks    func(*MockTransport)
		expectedError bool
	}{
		{
			name:       "success - subscription ended email",
			body:       []byte(`{"kind":"subscription_ended","user_uid":"11111111-1111-1111-1111-111111111111","email":"user@example.com"}`),
			setupMocks: func(tr *MockTransport) { successfulSend(tr, "user@example.com") },
		},
		{
			name:       "success - cancel scheduled email with end date",
			body:       []byte(`{"kind":"cancel_scheduled","user_uid":"11111111-1111-1111-1111-111111111111","email":"user@example.com","ends_at":"` + endsAt + `"}`),
			setupMocks: func(tr *MockTransport) { successfulSend(tr, "user@example.com") },
		},
		{
			name:       "success - trial expiring soon email",
			body:       []byte(`{"kind":"trial_expiring_soon","user_uid":"11111111-1111-1111-1111-111111111111","email":"user@example.com","ends_at":"` + endsAt + `"}`),
			setupMocks: func(tr *MockTransport) { successfulSend(tr, "user@example.com") },
		},
		{
			name:       "unknown kind is acked without sending",
			body:       []byte(`{"kind":"something_else","email":"user@example.com"}`),
			setupMocks: func(tr *MockTransport) {},
		},
		{
			name:       "missing email is acked without sending",
			body:       []byte(`{"kind":"subscription_ended","user_uid":"11111111-1111-1111-1111-111111111111"}`),
			setupMocks: func(tr *MockTransport) {},
		},
		{
			name:          "invalid json returns error",
			body:          []byte(`{not json`),
			setupMocks:    func(tr *MockTransport) {},
			expectedError: true,
		},
		{
			name: "connect failure returns error",
			body: []byte(`{"kind":"subscription_ended","email":"user@example.com"}`),
			setupMocks: func(tr *MockTransport) {
				tr.On("From").Return("sender@example.com")
				tr.On("Connect").Return(nil, assert.AnError).Once()
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			tt.setupMocks(transport)

			svc := New(newNoopLogger(), transport)
			err := svc.HandleNotification(tt.body)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			transport.AssertExpectations(t)
		})
	}
}

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/email"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// --- Mocks ---

// MockUserDirectory
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) ListAdminEmails(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockUserDirectory) ListActiveUserEmails(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockTriggerSource
type MockTriggerSource struct {
	mock.Mock
}

func (m *MockTriggerSource) ListEnabledByEvent(ctx context.Context, eventType models.EventType) ([]models.TriggerWithTemplate, error) {
	args := m.Called(ctx, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TriggerWithTemplate), args.Error(1)
}

func (m *MockTriggerSource) FindWithTemplate(ctx context.Context, triggerID utils.SixID) (*models.TriggerWithTemplate, error) {
	args := m.Called(ctx, triggerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TriggerWithTemplate), args.Error(1)
}

// MockTemplateSource
type MockTemplateSource struct {
	mock.Mock
}

func (m *MockTemplateSource) FindTemplateByID(ctx context.Context, id utils.SixID) (*models.EmailTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTemplate), args.Error(1)
}

// MockEnqueuer
type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueTriggerDispatch(ctx context.Context, triggerID utils.SixID, eventType models.EventType, eventData map[string]interface{}, delay time.Duration) error {
	args := m.Called(ctx, triggerID, eventType, eventData, delay)
	return args.Error(0)
}

// recordingSender captures every message it is asked to send and can be told
// to fail specific recipients.
type recordingSender struct {
	sent    []email.Message
	failFor map[string]error
	nextID  int
}

func newRecordingSender() *recordingSender {
	return &recordingSender{failFor: make(map[string]error)}
}

func (s *recordingSender) Send(ctx context.Context, msg email.Message) (string, error) {
	for _, to := range msg.To {
		if err, ok := s.failFor[to]; ok {
			return "", err
		}
	}
	s.sent = append(s.sent, msg)
	s.nextID++
	return fmt.Sprintf("msg-%d", s.nextID), nil
}

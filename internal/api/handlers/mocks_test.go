package handlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/email"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/notify"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// --- Mock services (testify) ---

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, name, email, password, development, plotNumber string) (*models.User, error) {
	args := m.Called(ctx, name, email, password, development, plotNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) SuspendUser(ctx context.Context, userID utils.SixID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserService) ListAdminEmails(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockUserService) ListActiveUserEmails(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockEmailTemplateService struct {
	mock.Mock
}

func (m *MockEmailTemplateService) FindTemplateByID(ctx context.Context, id utils.SixID) (*models.EmailTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTemplate), args.Error(1)
}

func (m *MockEmailTemplateService) FindTemplateByName(ctx context.Context, name string) (*models.EmailTemplate, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTemplate), args.Error(1)
}

func (m *MockEmailTemplateService) ListTemplates(ctx context.Context) ([]models.EmailTemplate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EmailTemplate), args.Error(1)
}

func (m *MockEmailTemplateService) CreateTemplate(ctx context.Context, tmpl *models.EmailTemplate) error {
	args := m.Called(ctx, tmpl)
	return args.Error(0)
}

func (m *MockEmailTemplateService) UpdateTemplate(ctx context.Context, id utils.SixID, updates map[string]interface{}) (*models.EmailTemplate, error) {
	args := m.Called(ctx, id, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTemplate), args.Error(1)
}

func (m *MockEmailTemplateService) DeleteTemplate(ctx context.Context, id utils.SixID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEmailTemplateService) EnsureBuiltinTemplates(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockEmailTriggerService struct {
	mock.Mock
}

func (m *MockEmailTriggerService) FindTriggerByID(ctx context.Context, id utils.SixID) (*models.EmailTrigger, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTrigger), args.Error(1)
}

func (m *MockEmailTriggerService) ListTriggers(ctx context.Context) ([]models.EmailTrigger, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EmailTrigger), args.Error(1)
}

func (m *MockEmailTriggerService) ListEnabledByEvent(ctx context.Context, eventType models.EventType) ([]models.TriggerWithTemplate, error) {
	args := m.Called(ctx, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TriggerWithTemplate), args.Error(1)
}

func (m *MockEmailTriggerService) FindWithTemplate(ctx context.Context, id utils.SixID) (*models.TriggerWithTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TriggerWithTemplate), args.Error(1)
}

func (m *MockEmailTriggerService) CreateTrigger(ctx context.Context, trigger *models.EmailTrigger) error {
	args := m.Called(ctx, trigger)
	return args.Error(0)
}

func (m *MockEmailTriggerService) UpdateTrigger(ctx context.Context, id utils.SixID, updates map[string]interface{}) (*models.EmailTrigger, error) {
	args := m.Called(ctx, id, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTrigger), args.Error(1)
}

func (m *MockEmailTriggerService) DeleteTrigger(ctx context.Context, id utils.SixID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEmailTriggerService) CountOtherEnabled(ctx context.Context, eventType models.EventType, excludeID utils.SixID) (int64, error) {
	args := m.Called(ctx, eventType, excludeID)
	return args.Get(0).(int64), args.Error(1)
}

// --- Fakes for wiring a real Dispatcher in handler tests ---

// fakeTriggerSource serves a fixed trigger set, or an error.
type fakeTriggerSource struct {
	triggers []models.TriggerWithTemplate
	err      error
}

func (f *fakeTriggerSource) ListEnabledByEvent(ctx context.Context, eventType models.EventType) ([]models.TriggerWithTemplate, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []models.TriggerWithTemplate{}
	for _, twt := range f.triggers {
		if twt.Trigger.EventType == eventType {
			out = append(out, twt)
		}
	}
	return out, nil
}

func (f *fakeTriggerSource) FindWithTemplate(ctx context.Context, triggerID utils.SixID) (*models.TriggerWithTemplate, error) {
	for i := range f.triggers {
		if f.triggers[i].Trigger.ID == triggerID {
			return &f.triggers[i], nil
		}
	}
	return nil, fmt.Errorf("trigger not found: %s", triggerID)
}

// fakeTemplateSource serves templates by id.
type fakeTemplateSource struct {
	templates map[utils.SixID]*models.EmailTemplate
}

func (f *fakeTemplateSource) FindTemplateByID(ctx context.Context, id utils.SixID) (*models.EmailTemplate, error) {
	if tmpl, ok := f.templates[id]; ok {
		return tmpl, nil
	}
	return nil, fmt.Errorf("template not found: %s", id)
}

// captureSender records messages instead of delivering them.
type captureSender struct {
	mu       sync.Mutex
	messages []email.Message
}

func (s *captureSender) Send(ctx context.Context, msg email.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return fmt.Sprintf("msg-%d", len(s.messages)), nil
}

func (s *captureSender) sent() []email.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]email.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

type staticDirectory struct {
	admins []string
	users  []string
}

func (d *staticDirectory) ListAdminEmails(ctx context.Context) ([]string, error) {
	return d.admins, nil
}

func (d *staticDirectory) ListActiveUserEmails(ctx context.Context) ([]string, error) {
	return d.users, nil
}

// newTestDispatcher builds a dispatcher over the fakes with notifications on.
func newTestDispatcher(triggers *fakeTriggerSource, templates *fakeTemplateSource, sender *captureSender) *notify.Dispatcher {
	resolver := notify.NewResolver(&staticDirectory{})
	settings := notify.StaticSettings{
		Enabled:     true,
		SiteName:    "Barratt Redrow Voices",
		BaseURL:     "https://voices.test",
		FromAddress: "noreply@voices.test",
	}
	return notify.NewDispatcher(triggers, templates, resolver, sender, settings)
}

package forms

import (
	"encoding/json"
	"os"
	"testing"

	goeen_log "github.com/eencloud/goeen/log"

	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/core"
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/signup"
)

type recordingNotifier struct {
	events []string
}

func (r *recordingNotifier) FormSubmitted(submissionID, formType string, data map[string]interface{}) {
	r.events = append(r.events, formType)
}

func newTestHandler(t *testing.T) (*Handler, *core.SubmissionStore, *recordingNotifier) {
	t.Helper()

	customFormat := "{{eenTimeStamp .Now}}[{{.Level}}]: {{.Message}}"
	logger := goeen_log.NewContext(os.Stderr, customFormat, goeen_log.LevelError).GetLogger("test", goeen_log.LevelError)

	store, err := core.NewSubmissionStore(t.TempDir(), 1, logger)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	events, err := core.NewEventLogger("test", "", core.ERROR)
	if err != nil {
		t.Fatalf("Failed to create event logger: %v", err)
	}

	notifier := &recordingNotifier{}
	return NewHandler(store, notifier, events, logger), store, notifier
}

func TestContact_StoresSubmission(t *testing.T) {
	h, store, notifier := newTestHandler(t)

	result, err := h.Contact(&ContactRequest{
		Name:    "Pat Doe",
		Email:   "pat@example.com",
		Phone:   "(555) 123-4567",
		Message: "Do you handle wedding dresses?",
	})
	if err != nil {
		t.Fatalf("Contact failed: %v", err)
	}

	sub, err := store.Get(result.SubmissionID)
	if err != nil {
		t.Fatalf("Submission not persisted: %v", err)
	}
	if sub.FormType != signup.FormContact {
		t.Errorf("Expected contact form type, got %s", sub.FormType)
	}
	if sub.Status != core.StatusCompleted {
		t.Errorf("Expected completed status, got %s", sub.Status)
	}

	var data ContactRequest
	if err := json.Unmarshal(sub.UserData, &data); err != nil {
		t.Fatalf("Failed to decode stored data: %v", err)
	}
	if data.Phone != "5551234567" {
		t.Errorf("Expected normalized phone, got %q", data.Phone)
	}

	if len(notifier.events) != 1 || notifier.events[0] != signup.FormContact {
		t.Errorf("Expected one contact notification, got %v", notifier.events)
	}
}

func TestContact_Validation(t *testing.T) {
	h, _, notifier := newTestHandler(t)

	tests := []struct {
		name string
		req  ContactRequest
	}{
		{"missing name", ContactRequest{Email: "a@b.com", Message: "hi"}},
		{"bad email", ContactRequest{Name: "Pat", Email: "nope", Message: "hi"}},
		{"missing message", ContactRequest{Name: "Pat", Email: "a@b.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Contact(&tt.req)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if signup.CodeOf(err) != signup.CodeValidation {
				t.Errorf("Expected validation code, got %v", signup.CodeOf(err))
			}
		})
	}

	if len(notifier.events) != 0 {
		t.Errorf("Invalid submissions must not notify, got %v", notifier.events)
	}
}

func TestOptIn_StoresSubmission(t *testing.T) {
	h, store, notifier := newTestHandler(t)

	result, err := h.OptIn(&OptInRequest{Email: "pat@example.com", List: "monthly"})
	if err != nil {
		t.Fatalf("OptIn failed: %v", err)
	}

	sub, err := store.Get(result.SubmissionID)
	if err != nil {
		t.Fatalf("Submission not persisted: %v", err)
	}
	if sub.FormType != signup.FormOptIn {
		t.Errorf("Expected optin form type, got %s", sub.FormType)
	}

	if len(notifier.events) != 1 || notifier.events[0] != signup.FormOptIn {
		t.Errorf("Expected one optin notification, got %v", notifier.events)
	}
}

func TestOptIn_RejectsBadEmail(t *testing.T) {
	h, _, _ := newTestHandler(t)

	_, err := h.OptIn(&OptInRequest{Email: "not-an-email"})
	if err == nil || signup.CodeOf(err) != signup.CodeValidation {
		t.Fatalf("Expected validation error, got %v", err)
	}
}

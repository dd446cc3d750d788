package forms

import (
	"encoding/json"
	"fmt"

	goeen_log "github.com/eencloud/goeen/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/core"
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/signup"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ContactRequest is a single-shot contact form message.
type ContactRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message" validate:"required,max=5000"`
}

// OptInRequest subscribes an address to marketing email.
type OptInRequest struct {
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone,omitempty"`
	List  string `json:"list,omitempty"`
}

// Result confirms the stored submission.
type Result struct {
	SubmissionID string `json:"submission_id"`
	Message      string `json:"message"`
}

// Notifications is the subset of the notifier the single-shot forms use.
type Notifications interface {
	FormSubmitted(submissionID, formType string, data map[string]interface{})
}

// Handler persists contact and opt-in submissions. Unlike the signup wizard
// these forms have no POS side effects; they are stored complete and fanned
// out to the notifier.
type Handler struct {
	store    *core.SubmissionStore
	notifier Notifications
	events   *core.EventLogger
	logger   *goeen_log.Logger
}

func NewHandler(store *core.SubmissionStore, notifier Notifications, events *core.EventLogger, logger *goeen_log.Logger) *Handler {
	return &Handler{
		store:    store,
		notifier: notifier,
		events:   events,
		logger:   logger,
	}
}

// Contact stores a contact form message.
func (h *Handler) Contact(req *ContactRequest) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, &signup.StepError{Code: signup.CodeValidation, Message: contactMessage(err)}
	}
	if req.Phone != "" {
		req.Phone = signup.NormalizePhone(req.Phone)
	}

	sub, err := h.persist(signup.FormContact, req)
	if err != nil {
		return nil, err
	}

	h.events.LogStepCompleted(sub.ID, 0, signup.FormContact)
	h.notifier.FormSubmitted(sub.ID, signup.FormContact, map[string]interface{}{
		"name":    req.Name,
		"email":   req.Email,
		"message": req.Message,
	})

	return &Result{
		SubmissionID: sub.ID,
		Message:      "Thanks for reaching out! We'll get back to you soon.",
	}, nil
}

// OptIn stores a marketing opt-in.
func (h *Handler) OptIn(req *OptInRequest) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, &signup.StepError{Code: signup.CodeValidation, Message: "Please enter a valid email address."}
	}
	if req.Phone != "" {
		req.Phone = signup.NormalizePhone(req.Phone)
	}

	sub, err := h.persist(signup.FormOptIn, req)
	if err != nil {
		return nil, err
	}

	h.events.LogStepCompleted(sub.ID, 0, signup.FormOptIn)
	h.notifier.FormSubmitted(sub.ID, signup.FormOptIn, map[string]interface{}{
		"email": req.Email,
		"list":  req.List,
	})

	return &Result{
		SubmissionID: sub.ID,
		Message:      "You're on the list!",
	}, nil
}

func (h *Handler) persist(formType string, payload interface{}) (*core.Submission, error) {
	userData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal form data: %w", err)
	}

	sub := &core.Submission{
		ID:       uuid.New().String(),
		FormType: formType,
		UserData: userData,
		Status:   core.StatusCompleted,
	}
	if err := h.store.Create(sub); err != nil {
		h.logger.Errorf("Failed to store %s submission: %v", formType, err)
		return nil, &signup.StepError{Code: signup.CodeIntegration, Message: "Something went wrong. Please try again."}
	}
	return sub, nil
}

func contactMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "Please check your information and try again."
	}
	switch verrs[0].StructField() {
	case "Name":
		return "Please enter your name."
	case "Email":
		return "Please enter a valid email address."
	case "Message":
		return "Please enter a message."
	}
	return "Please check your information and try again."
}

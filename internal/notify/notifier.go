package notify

import (
	"fmt"
	"time"

	"github.com/eencloud/goeen/log"
)

// Notifier fans step-completion and terminal events out to webhooks and
// email. Everything is fire-and-forget: delivery happens on goroutines,
// failures are logged and never surfaced to the signup path.
type Notifier struct {
	webhookURLs []string
	webhook     *WebhookClient
	email       *EmailSender
	logger      *log.Logger
}

func NewNotifier(webhookURLs []string, webhook *WebhookClient, email *EmailSender, logger *log.Logger) *Notifier {
	return &Notifier{
		webhookURLs: webhookURLs,
		webhook:     webhook,
		email:       email,
		logger:      logger,
	}
}

// StepCompleted announces that a wizard step finished.
func (n *Notifier) StepCompleted(submissionID, formType string, step int, data map[string]interface{}) {
	n.dispatch(WebhookPayload{
		Event:        "signup.step_completed",
		FormType:     formType,
		SubmissionID: submissionID,
		Step:         step,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Data:         data,
	})
}

// SignupCompleted announces the terminal success event and mails the admins.
func (n *Notifier) SignupCompleted(submissionID, customerName, customerEmail string, data map[string]interface{}) {
	n.dispatch(WebhookPayload{
		Event:        "signup.completed",
		FormType:     "signup",
		SubmissionID: submissionID,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Data:         data,
	})

	if n.email != nil && n.email.Enabled() {
		go func() {
			subject := fmt.Sprintf("New customer signup: %s", customerName)
			body := fmt.Sprintf("A new customer completed signup.\n\nName: %s\nEmail: %s\nSubmission: %s\n",
				customerName, customerEmail, submissionID)
			if err := n.email.Send(subject, body); err != nil {
				n.logger.Errorf("Signup completion email failed: %v", err)
			}
		}()
	}
}

// FormSubmitted announces a contact or opt-in submission and mails the
// admins for contact forms.
func (n *Notifier) FormSubmitted(submissionID, formType string, data map[string]interface{}) {
	n.dispatch(WebhookPayload{
		Event:        "form.submitted",
		FormType:     formType,
		SubmissionID: submissionID,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Data:         data,
	})

	if formType == "contact" && n.email != nil && n.email.Enabled() {
		go func() {
			name, _ := data["name"].(string)
			message, _ := data["message"].(string)
			subject := fmt.Sprintf("New contact form message from %s", name)
			body := fmt.Sprintf("Contact form submission %s:\n\n%s\n", submissionID, message)
			if err := n.email.Send(subject, body); err != nil {
				n.logger.Errorf("Contact form email failed: %v", err)
			}
		}()
	}
}

// SignupFailed announces a terminal error on a submission.
func (n *Notifier) SignupFailed(submissionID string, step int, reason string) {
	n.dispatch(WebhookPayload{
		Event:        "signup.failed",
		FormType:     "signup",
		SubmissionID: submissionID,
		Step:         step,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Data:         map[string]interface{}{"reason": reason},
	})
}

func (n *Notifier) dispatch(payload WebhookPayload) {
	for _, url := range n.webhookURLs {
		url := url
		go func() {
			if err := n.webhook.Send(url, payload); err != nil {
				n.logger.Debugf("Webhook %s dropped event %s: %v", url, payload.Event, err)
			}
		}()
	}
}

// HealthStats exposes webhook breaker counters for the metrics endpoint.
func (n *Notifier) HealthStats() map[string]interface{} {
	if n.webhook == nil {
		return map[string]interface{}{"status": "not_configured"}
	}
	return n.webhook.HealthStats()
}

package signup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goeen_log "github.com/eencloud/goeen/log"
	"github.com/google/uuid"

	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/core"
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/pos"
)

// pickupDatesTimeout bounds the optional availability fetch at step 3 so a
// slow vendor cannot stall the address step.
const pickupDatesTimeout = 2 * time.Second

// IntegrationProvider hands out the currently active POS backend.
type IntegrationProvider interface {
	Active() pos.Integration
}

// Notifications receives wizard lifecycle events. Implementations must not
// block.
type Notifications interface {
	StepCompleted(submissionID, formType string, step int, data map[string]interface{})
	SignupCompleted(submissionID, customerName, customerEmail string, data map[string]interface{})
	SignupFailed(submissionID string, step int, reason string)
}

// NextStep tells the caller which step comes next and carries the token
// that authorizes it.
type NextStep struct {
	Step  int    `json:"step"`
	Token string `json:"token"`
}

// Step1Result reports the outcome of the basic-info step. When
// CustomerExists is set the signup was not created and RedirectURL points
// at the login page.
type Step1Result struct {
	SubmissionID   string    `json:"submission_id,omitempty"`
	CustomerExists bool      `json:"customer_exists,omitempty"`
	RedirectURL    string    `json:"redirect_url,omitempty"`
	Message        string    `json:"message,omitempty"`
	NextStep       *NextStep `json:"next_step,omitempty"`
}

// Step2Result reports the service-preference step. Completed is set on the
// short-circuit branches where no pickup flow follows.
type Step2Result struct {
	Completed         bool      `json:"completed,omitempty"`
	Message           string    `json:"message,omitempty"`
	LoginInstructions string    `json:"login_instructions,omitempty"`
	RedirectURL       string    `json:"redirect_url,omitempty"`
	NextStep          *NextStep `json:"next_step,omitempty"`
}

// Step3Result reports the address step. PickupDates may be empty when the
// availability fetch failed; the pickup step re-fetches on demand.
type Step3Result struct {
	SubmissionID string           `json:"submission_id"`
	CustomerID   string           `json:"customer_id"`
	AddressID    string           `json:"address_id,omitempty"`
	PickupDates  []pos.PickupDate `json:"pickup_dates,omitempty"`
	NextStep     *NextStep        `json:"next_step,omitempty"`
}

// Step4Result reports the completed signup.
type Step4Result struct {
	Completed   bool             `json:"completed"`
	Appointment *pos.Appointment `json:"appointment,omitempty"`
	Receipt     *pos.Receipt     `json:"receipt,omitempty"`
	Message     string           `json:"message,omitempty"`
}

// Wizard drives the four-step signup flow. Each step verifies its token,
// validates input, talks to the POS backend, and only then persists; a
// failed step leaves the submission untouched.
type Wizard struct {
	store        *core.SubmissionStore
	integrations IntegrationProvider
	tokens       *StepTokens
	notifier     Notifications
	events       *core.EventLogger
	logger       *goeen_log.Logger

	loginURL string
	storeURL string
}

func NewWizard(store *core.SubmissionStore, integrations IntegrationProvider, tokens *StepTokens,
	notifier Notifications, events *core.EventLogger, logger *goeen_log.Logger,
	loginURL, storeURL string) *Wizard {
	return &Wizard{
		store:        store,
		integrations: integrations,
		tokens:       tokens,
		notifier:     notifier,
		events:       events,
		logger:       logger,
		loginURL:     loginURL,
		storeURL:     storeURL,
	}
}

// BootstrapToken issues the step-1 token handed to the page before any
// submission exists.
func (w *Wizard) BootstrapToken() (string, error) {
	return w.tokens.Issue(1, "")
}

func (w *Wizard) active() (pos.Integration, *StepError) {
	integration := w.integrations.Active()
	if integration == nil {
		return nil, &StepError{Code: CodeIntegration, Message: "Signups are temporarily unavailable. Please try again later."}
	}
	return integration, nil
}

// Step1 verifies the customer is new and opens a submission.
func (w *Wizard) Step1(ctx context.Context, req *Step1Request) (*Step1Result, error) {
	if err := w.tokens.Verify(req.Token, 1, ""); err != nil {
		return nil, securityError()
	}
	if verr := validateRequest(req); verr != nil {
		return nil, verr
	}

	integration, serr := w.active()
	if serr != nil {
		return nil, serr
	}

	phone := NormalizePhone(req.Phone)
	existing, err := integration.CustomerExists(ctx, req.Email, phone)
	if err != nil {
		w.events.LogIntegrationError("", "customer_lookup", err)
		return nil, integrationError(err)
	}
	if existing != nil {
		w.events.LogExistingCustomerBlocked(req.Email)
		return &Step1Result{
			CustomerExists: true,
			RedirectURL:    w.loginURL,
			Message:        "Looks like you already have an account. Please log in.",
		}, nil
	}

	state := &SignupState{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     phone,
		Email:     req.Email,
		PromoCode: req.PromoCode,
		UTM:       req.UTM,
	}
	userData, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signup state: %w", err)
	}

	sub := &core.Submission{
		ID:            uuid.New().String(),
		FormType:      FormSignup,
		UserData:      userData,
		StepCompleted: 1,
		Status:        core.StepStatus(1),
	}
	if err := w.store.Create(sub); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	token, err := w.tokens.Issue(2, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue step token: %w", err)
	}

	w.events.LogStepCompleted(sub.ID, 1, FormSignup)
	w.notifier.StepCompleted(sub.ID, FormSignup, 1, map[string]interface{}{
		"email": req.Email,
		"name":  state.FullName(),
	})

	return &Step1Result{
		SubmissionID: sub.ID,
		NextStep:     &NextStep{Step: 2, Token: token},
	}, nil
}

// Step2 records the service preference. Retail-store and not-sure customers
// get their account created immediately and the flow ends; pickup customers
// continue to the address step.
func (w *Wizard) Step2(ctx context.Context, req *Step2Request) (*Step2Result, error) {
	if err := w.tokens.Verify(req.Token, 2, req.SubmissionID); err != nil {
		return nil, securityError()
	}
	if verr := validateRequest(req); verr != nil {
		return nil, verr
	}

	state, serr := w.loadState(req.SubmissionID, 1)
	if serr != nil {
		return nil, serr
	}
	state.ServicePreference = req.ServicePreference

	if req.ServicePreference == PreferencePickupDelivery {
		token, err := w.tokens.Issue(3, req.SubmissionID)
		if err != nil {
			return nil, fmt.Errorf("failed to issue step token: %w", err)
		}
		if serr := w.saveState(req.SubmissionID, state, 2, core.StepStatus(2), nil); serr != nil {
			return nil, serr
		}
		w.events.LogStepCompleted(req.SubmissionID, 2, FormSignup)
		w.events.LogStateTransition(req.SubmissionID, 2, 3, "service_preference")
		w.notifier.StepCompleted(req.SubmissionID, FormSignup, 2, map[string]interface{}{
			"service_preference": req.ServicePreference,
		})
		return &Step2Result{NextStep: &NextStep{Step: 3, Token: token}}, nil
	}

	// No pickup flow needed. Create the account now and finish.
	integration, serr := w.active()
	if serr != nil {
		return nil, serr
	}
	customer, err := integration.CreateCustomer(ctx, state.CustomerData())
	if err != nil {
		if existingID, ok := pos.AlreadyExists(err); ok {
			customer = &pos.Customer{ID: existingID}
		} else {
			w.events.LogIntegrationError(req.SubmissionID, "customer_create", err)
			return nil, integrationError(err)
		}
	}
	state.CustomerID = customer.ID

	integrationData, _ := json.Marshal(map[string]string{
		"vendor":      integration.Name(),
		"customer_id": customer.ID,
	})
	if serr := w.saveState(req.SubmissionID, state, 2, core.StatusCompleted, integrationData); serr != nil {
		return nil, serr
	}

	w.events.LogCustomerCreated(req.SubmissionID, customer.ID, integration.Name())
	w.events.LogSignupCompleted(req.SubmissionID, customer.ID, 2)
	w.notifier.SignupCompleted(req.SubmissionID, state.FullName(), state.Email, map[string]interface{}{
		"customer_id":        customer.ID,
		"service_preference": req.ServicePreference,
	})

	result := &Step2Result{
		Completed:         true,
		Message:           "Your account is ready!",
		LoginInstructions: "We sent your login details to " + state.Email + ".",
	}
	if req.ServicePreference == PreferenceRetailStore {
		result.RedirectURL = w.storeURL
	}
	return result, nil
}

// Step3 creates the customer with their delivery address and offers pickup
// dates when the vendor answers quickly enough.
func (w *Wizard) Step3(ctx context.Context, req *Step3Request) (*Step3Result, error) {
	if err := w.tokens.Verify(req.Token, 3, req.SubmissionID); err != nil {
		return nil, securityError()
	}
	if verr := validateRequest(req); verr != nil {
		return nil, verr
	}

	state, serr := w.loadState(req.SubmissionID, 2)
	if serr != nil {
		return nil, serr
	}
	state.Address = req.address()

	integration, serr := w.active()
	if serr != nil {
		return nil, serr
	}

	customer, err := integration.CreateCustomer(ctx, state.CustomerData())
	if err != nil {
		if existingID, ok := pos.AlreadyExists(err); ok {
			// A retried step already created the account. Reuse it and
			// push the address through an update instead.
			customer = &pos.Customer{ID: existingID}
		} else {
			w.events.LogIntegrationError(req.SubmissionID, "customer_create", err)
			return nil, integrationError(err)
		}
	}
	state.CustomerID = customer.ID

	update, err := integration.UpdateCustomer(ctx, customer.ID, state.CustomerData())
	if err != nil {
		w.events.LogIntegrationError(req.SubmissionID, "customer_update", err)
		return nil, integrationError(err)
	}
	state.AddressID = update.AddressID

	// Availability is a convenience here, not a requirement. The pickup
	// step fetches again on demand.
	dates := w.fetchPickupDates(customer.ID, update.AddressID, integration)

	token, err := w.tokens.Issue(4, req.SubmissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue step token: %w", err)
	}

	integrationData, _ := json.Marshal(map[string]string{
		"vendor":      integration.Name(),
		"customer_id": customer.ID,
		"address_id":  update.AddressID,
	})
	if serr := w.saveState(req.SubmissionID, state, 3, core.StepStatus(3), integrationData); serr != nil {
		return nil, serr
	}

	w.events.LogCustomerCreated(req.SubmissionID, customer.ID, integration.Name())
	w.events.LogStepCompleted(req.SubmissionID, 3, FormSignup)
	w.notifier.StepCompleted(req.SubmissionID, FormSignup, 3, map[string]interface{}{
		"customer_id": customer.ID,
		"city":        req.City,
		"state":       req.State,
	})

	return &Step3Result{
		SubmissionID: req.SubmissionID,
		CustomerID:   customer.ID,
		AddressID:    update.AddressID,
		PickupDates:  dates,
		NextStep:     &NextStep{Step: 4, Token: token},
	}, nil
}

func (w *Wizard) fetchPickupDates(customerID, addressID string, integration pos.Integration) []pos.PickupDate {
	ctx, cancel := context.WithTimeout(context.Background(), pickupDatesTimeout)
	defer cancel()

	dates, err := integration.GetPickupDates(ctx, customerID, addressID)
	if err != nil {
		w.logger.Warningf("Pickup date fetch failed for customer %s: %v", customerID, err)
		return nil
	}
	return dates
}

// PickupDates re-fetches availability for a submission that already passed
// the address step.
func (w *Wizard) PickupDates(ctx context.Context, submissionID, token string) ([]pos.PickupDate, error) {
	if err := w.tokens.Verify(token, 4, submissionID); err != nil {
		return nil, securityError()
	}
	state, serr := w.loadState(submissionID, 3)
	if serr != nil {
		return nil, serr
	}

	integration, serr := w.active()
	if serr != nil {
		return nil, serr
	}
	dates, err := integration.GetPickupDates(ctx, state.CustomerID, state.AddressID)
	if err != nil {
		w.events.LogIntegrationError(submissionID, "pickup_dates", err)
		return nil, integrationError(err)
	}
	return dates, nil
}

// Step4 collects payment details, schedules the first pickup, charges the
// card when an amount is due, and closes the signup.
func (w *Wizard) Step4(ctx context.Context, req *Step4Request) (*Step4Result, error) {
	if err := w.tokens.Verify(req.Token, 4, req.SubmissionID); err != nil {
		return nil, securityError()
	}
	if verr := validateRequest(req); verr != nil {
		return nil, verr
	}
	payment, verr := paymentFromRequest(req)
	if verr != nil {
		return nil, verr
	}

	state, serr := w.loadState(req.SubmissionID, 3)
	if serr != nil {
		return nil, serr
	}

	integration, serr := w.active()
	if serr != nil {
		return nil, serr
	}

	appointment, err := integration.SchedulePickup(ctx, state.CustomerID, req.PickupDate, pos.PickupDetails{
		TimeSlot:  req.TimeSlot,
		AddressID: state.AddressID,
		Notes:     req.Notes,
	})
	if err != nil {
		w.events.LogIntegrationError(req.SubmissionID, "schedule_pickup", err)
		w.notifier.SignupFailed(req.SubmissionID, 4, err.Error())
		return nil, integrationError(err)
	}

	var receipt *pos.Receipt
	if payment.Amount > 0 {
		receipt, err = integration.ProcessPayment(ctx, state.CustomerID, *payment)
		if err != nil {
			w.events.LogIntegrationError(req.SubmissionID, "process_payment", err)
			w.notifier.SignupFailed(req.SubmissionID, 4, err.Error())
			return nil, integrationError(err)
		}
		w.events.LogPaymentProcessed(req.SubmissionID, state.CustomerID, payment.Amount)
	}

	integrationData, _ := json.Marshal(map[string]interface{}{
		"vendor":         integration.Name(),
		"customer_id":    state.CustomerID,
		"address_id":     state.AddressID,
		"appointment_id": appointment.ID,
	})
	if serr := w.saveState(req.SubmissionID, state, 4, core.StatusCompleted, integrationData); serr != nil {
		return nil, serr
	}

	w.events.LogPickupScheduled(req.SubmissionID, state.CustomerID, appointment.Date, appointment.TimeSlot)
	w.events.LogSignupCompleted(req.SubmissionID, state.CustomerID, 4)
	w.notifier.SignupCompleted(req.SubmissionID, state.FullName(), state.Email, map[string]interface{}{
		"customer_id":    state.CustomerID,
		"appointment_id": appointment.ID,
		"pickup_date":    appointment.Date,
	})

	return &Step4Result{
		Completed:   true,
		Appointment: appointment,
		Receipt:     receipt,
		Message:     "You're all set! We'll see you on " + appointment.Date + ".",
	}, nil
}

// paymentFromRequest validates the card block as a whole. The pickup step
// always requires complete card details; the card is only charged when an
// amount is due.
func paymentFromRequest(req *Step4Request) (*pos.PaymentData, *StepError) {
	allCard := req.CardNumber != "" && req.ExpMonth != "" && req.ExpYear != "" && req.CVC != ""
	if !allCard {
		return nil, validationError("Please fill in all payment fields")
	}
	return &pos.PaymentData{
		CardNumber: req.CardNumber,
		ExpMonth:   req.ExpMonth,
		ExpYear:    req.ExpYear,
		CVC:        req.CVC,
		BillingZip: req.BillingZip,
		Amount:     req.Amount,
	}, nil
}

// loadState fetches the submission, checks it has completed exactly the
// expected prior step and has not already finished, and decodes its state.
func (w *Wizard) loadState(submissionID string, wantCompleted int) (*SignupState, *StepError) {
	sub, err := w.store.Get(submissionID)
	if err != nil {
		return nil, notFoundError()
	}
	if sub.FormType != FormSignup || sub.Status == core.StatusCompleted {
		return nil, notFoundError()
	}
	if sub.StepCompleted != wantCompleted {
		return nil, securityError()
	}

	var state SignupState
	if err := json.Unmarshal(sub.UserData, &state); err != nil {
		w.logger.Errorf("Corrupt state on submission %s: %v", submissionID, err)
		return nil, notFoundError()
	}
	return &state, nil
}

// saveState is the single persistence point for a successful step.
func (w *Wizard) saveState(submissionID string, state *SignupState, step int, status string, integrationData json.RawMessage) *StepError {
	userData, err := json.Marshal(state)
	if err != nil {
		return &StepError{Code: CodeIntegration, Message: "Something went wrong. Please try again.", Err: err}
	}

	_, err = w.store.Update(submissionID, func(sub *core.Submission) error {
		sub.UserData = userData
		sub.StepCompleted = step
		sub.Status = status
		if integrationData != nil {
			sub.IntegrationData = integrationData
		}
		return nil
	})
	if err != nil {
		w.logger.Errorf("Failed to persist step %d for submission %s: %v", step, submissionID, err)
		return &StepError{Code: CodeIntegration, Message: "Something went wrong. Please try again.", Err: err}
	}
	return nil
}

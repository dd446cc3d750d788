package signup

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/pos"
)

var (
	validate = newValidator()
	zipRe    = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	digitRe  = regexp.MustCompile(`\D`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterValidation("usphone", func(fl validator.FieldLevel) bool {
		digits := digitRe.ReplaceAllString(fl.Field().String(), "")
		if len(digits) == 11 && strings.HasPrefix(digits, "1") {
			digits = digits[1:]
		}
		return len(digits) == 10
	})

	v.RegisterValidation("uszip", func(fl validator.FieldLevel) bool {
		return zipRe.MatchString(fl.Field().String())
	})

	return v
}

// NormalizePhone strips formatting so lookups and vendor calls always see
// the same ten digits.
func NormalizePhone(phone string) string {
	digits := digitRe.ReplaceAllString(phone, "")
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		digits = digits[1:]
	}
	return digits
}

// Step1Request collects basic contact info. UTM fields are optional tracking
// passthrough, never validated.
type Step1Request struct {
	Token     string            `json:"token" validate:"required"`
	FirstName string            `json:"first_name" validate:"required"`
	LastName  string            `json:"last_name" validate:"required"`
	Phone     string            `json:"phone" validate:"required,usphone"`
	Email     string            `json:"email" validate:"required,email"`
	PromoCode string            `json:"promo_code,omitempty" validate:"omitempty,max=32"`
	UTM       map[string]string `json:"utm,omitempty"`
}

// Step2Request records the service preference.
type Step2Request struct {
	Token             string `json:"token" validate:"required"`
	SubmissionID      string `json:"submission_id" validate:"required"`
	ServicePreference string `json:"service_preference" validate:"required,oneof=retail_store pickup_delivery not_sure"`
}

// Step3Request collects the delivery address.
type Step3Request struct {
	Token        string `json:"token" validate:"required"`
	SubmissionID string `json:"submission_id" validate:"required"`
	Street       string `json:"street" validate:"required"`
	Street2      string `json:"street2,omitempty"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required,len=2,alpha"`
	Zip          string `json:"zip" validate:"required,uszip"`
}

// Step4Request schedules the first pickup. The card block is required as a
// whole and validated as a group by the wizard, not per field, so a missing
// or partial payment block produces one message; the card is only charged
// when amount > 0.
type Step4Request struct {
	Token        string `json:"token" validate:"required"`
	SubmissionID string `json:"submission_id" validate:"required"`
	PickupDate   string `json:"pickup_date" validate:"required"`
	TimeSlot     string `json:"time_slot" validate:"required"`
	Notes        string `json:"notes,omitempty"`

	CardNumber string  `json:"card_number,omitempty"`
	ExpMonth   string  `json:"exp_month,omitempty"`
	ExpYear    string  `json:"exp_year,omitempty"`
	CVC        string  `json:"cvc,omitempty"`
	BillingZip string  `json:"billing_zip,omitempty"`
	Amount     float64 `json:"amount,omitempty" validate:"omitempty,gte=0"`
}

func (r *Step3Request) address() *pos.Address {
	return &pos.Address{
		Street:  r.Street,
		Street2: r.Street2,
		City:    r.City,
		State:   strings.ToUpper(r.State),
		Zip:     r.Zip,
	}
}

// fieldMessages maps struct fields to the user-facing validation message.
var fieldMessages = map[string]string{
	"FirstName":         "Please enter your first name.",
	"LastName":          "Please enter your last name.",
	"Phone":             "Please enter a valid phone number.",
	"Email":             "Please enter a valid email address.",
	"PromoCode":         "Promo code is too long.",
	"ServicePreference": "Please choose a service option.",
	"Street":            "Please enter your street address.",
	"City":              "Please enter your city.",
	"State":             "Please enter your two-letter state.",
	"Zip":               "Please enter a valid ZIP code.",
	"PickupDate":        "Please choose a pickup date.",
	"TimeSlot":          "Please choose a pickup time.",
	"Amount":            "Payment amount cannot be negative.",
}

// validateRequest runs validator rules and converts the first failure into
// a friendly validation error.
func validateRequest(req interface{}) *StepError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return validationError("Please check your information and try again.")
	}
	field := verrs[0].StructField()
	if msg, ok := fieldMessages[field]; ok {
		return validationError(msg)
	}
	return validationError("Please check your information and try again.")
}

package pos

import (
	"context"
	"encoding/json"

	"github.com/eencloud/goeen/log"
)

// Customer is the POS-side customer record.
type Customer struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Address is a delivery address in vendor-neutral form.
type Address struct {
	Street  string `json:"street"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

// CustomerData carries everything known about the customer at creation or
// update time. Address is nil until the wizard has collected it.
type CustomerData struct {
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	PromoCode string   `json:"promo_code,omitempty"`
	Address   *Address `json:"address,omitempty"`
}

// UpdateResult reports what an UpdateCustomer call changed.
type UpdateResult struct {
	AddressID string `json:"address_id,omitempty"`
	Updated   bool   `json:"updated"`
}

// PickupDate is one available pickup day with its open time slots.
type PickupDate struct {
	Date      string   `json:"date"`
	TimeSlots []string `json:"time_slots"`
}

// PickupDetails carries the scheduling extras beyond customer/date.
type PickupDetails struct {
	TimeSlot  string `json:"time_slot"`
	AddressID string `json:"address_id,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Appointment is a confirmed pickup.
type Appointment struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	TimeSlot string `json:"time_slot"`
}

// PaymentData is the card payment collected at step 4. Amount of zero means
// card-on-file only, no charge.
type PaymentData struct {
	CardNumber string  `json:"card_number"`
	ExpMonth   string  `json:"exp_month"`
	ExpYear    string  `json:"exp_year"`
	CVC        string  `json:"cvc"`
	BillingZip string  `json:"billing_zip,omitempty"`
	Amount     float64 `json:"amount"`
}

// Receipt confirms a processed payment.
type Receipt struct {
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
}

// Integration is a POS backend that can look up and create customers,
// schedule pickups and take payments. Every operation returns *Error on
// domain failure.
type Integration interface {
	Name() string
	Start() error
	Stop(ctx context.Context) error

	// CustomerExists looks a customer up by email or phone. A nil Customer
	// with nil error means no match.
	CustomerExists(ctx context.Context, email, phone string) (*Customer, error)
	CreateCustomer(ctx context.Context, data CustomerData) (*Customer, error)
	UpdateCustomer(ctx context.Context, customerID string, data CustomerData) (*UpdateResult, error)
	GetPickupDates(ctx context.Context, customerID, addressID string) ([]PickupDate, error)
	SchedulePickup(ctx context.Context, customerID, date string, details PickupDetails) (*Appointment, error)
	ProcessPayment(ctx context.Context, customerID string, payment PaymentData) (*Receipt, error)
}

// NewFunc is a function signature for creating a new integration instance.
// It will be passed the vendor-specific section of the integration settings.
type NewFunc func(logger *log.Logger, vendorConfig json.RawMessage) (Integration, error)

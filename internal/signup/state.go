package signup

import (
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/pos"
)

// Form types persisted on submissions.
const (
	FormSignup  = "signup"
	FormContact = "contact"
	FormOptIn   = "optin"
)

// Service preference values collected at step 2.
const (
	PreferenceRetailStore    = "retail_store"
	PreferencePickupDelivery = "pickup_delivery"
	PreferenceNotSure        = "not_sure"
)

// SignupState accumulates everything the wizard learns about a customer.
// Fields are only ever added or extended across the flow, never removed;
// it is serialized into Submission.UserData at the persistence boundary.
type SignupState struct {
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Phone     string            `json:"phone"`
	Email     string            `json:"email"`
	PromoCode string            `json:"promo_code,omitempty"`
	UTM       map[string]string `json:"utm,omitempty"`

	ServicePreference string `json:"service_preference,omitempty"`

	Address *pos.Address `json:"address,omitempty"`

	CustomerID string `json:"customer_id,omitempty"`
	AddressID  string `json:"address_id,omitempty"`
}

// FullName is used in notifications.
func (s *SignupState) FullName() string {
	return s.FirstName + " " + s.LastName
}

// CustomerData builds the adapter payload from whatever has been collected
// so far.
func (s *SignupState) CustomerData() pos.CustomerData {
	return pos.CustomerData{
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Email:     s.Email,
		Phone:     s.Phone,
		PromoCode: s.PromoCode,
		Address:   s.Address,
	}
}

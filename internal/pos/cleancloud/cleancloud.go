package cleancloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/pos"

	goeen_log "github.com/eencloud/goeen/log"
	"github.com/google/uuid"
)

const VendorName = "cleancloud"

// Namespace for deterministic scheduling idempotency keys
var pickupNamespaceUUID = uuid.MustParse("6c9808cd-15e4-4e4a-9a3b-7a11d0e2f3b1")

type Settings struct {
	APIURL         string `json:"api_url"`
	APIKey         string `json:"api_key"`
	StoreID        string `json:"store_id"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func init() {
	pos.Register(VendorName, New)
}

// Integration talks to the CleanCloud customer/scheduling/payment API. In
// simulation mode it boots an in-process fake of that API and points itself
// at it, so the full signup flow runs without a real backend.
type Integration struct {
	logger    *goeen_log.Logger
	settings  Settings
	client    *http.Client
	simulator *Simulator
	isSimMode bool

	apiCallCount int64
}

func New(logger *goeen_log.Logger, rawConfig json.RawMessage) (pos.Integration, error) {
	var s Settings
	if err := json.Unmarshal(rawConfig, &s); err != nil {
		return nil, err
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = 10
	}

	return &Integration{
		logger:    logger,
		settings:  s,
		client:    &http.Client{Timeout: time.Duration(s.TimeoutSeconds) * time.Second},
		isSimMode: os.Getenv("MODE") == "simulation",
	}, nil
}

func (i *Integration) Name() string {
	return VendorName
}

func (i *Integration) Start() error {
	if i.isSimMode {
		i.simulator = NewSimulator(i.logger)
		if err := i.simulator.Start(); err != nil {
			return fmt.Errorf("failed to start cleancloud simulator: %w", err)
		}
		i.settings.APIURL = i.simulator.BaseURL()
		i.logger.Infof("Simulation mode: cleancloud integration pointed at %s", i.settings.APIURL)
		return nil
	}

	if i.settings.APIURL == "" {
		return fmt.Errorf("cleancloud api_url is required")
	}
	i.logger.Infof("Starting cleancloud integration against %s (store %s)", i.settings.APIURL, i.settings.StoreID)
	return nil
}

func (i *Integration) Stop(ctx context.Context) error {
	if i.simulator != nil {
		return i.simulator.Stop(ctx)
	}
	return nil
}

func (i *Integration) CustomerExists(ctx context.Context, email, phone string) (*pos.Customer, error) {
	var out struct {
		Exists   bool          `json:"exists"`
		Customer *pos.Customer `json:"customer"`
	}
	body := map[string]string{"email": email, "phone": phone, "store_id": i.settings.StoreID}
	if err := i.doJSON(ctx, http.MethodPost, "/api/customers/search", body, nil, &out); err != nil {
		return nil, err
	}
	if !out.Exists {
		return nil, nil
	}
	return out.Customer, nil
}

func (i *Integration) CreateCustomer(ctx context.Context, data pos.CustomerData) (*pos.Customer, error) {
	var out pos.Customer
	payload := map[string]interface{}{
		"store_id":   i.settings.StoreID,
		"first_name": data.FirstName,
		"last_name":  data.LastName,
		"email":      data.Email,
		"phone":      data.Phone,
	}
	if data.PromoCode != "" {
		payload["promo_code"] = data.PromoCode
	}
	if data.Address != nil {
		payload["address"] = data.Address
	}
	if err := i.doJSON(ctx, http.MethodPost, "/api/customers", payload, nil, &out); err != nil {
		return nil, err
	}
	i.logger.Infof("Created cleancloud customer %s", out.ID)
	return &out, nil
}

func (i *Integration) UpdateCustomer(ctx context.Context, customerID string, data pos.CustomerData) (*pos.UpdateResult, error) {
	var out pos.UpdateResult
	path := fmt.Sprintf("/api/customers/%s", customerID)
	if err := i.doJSON(ctx, http.MethodPut, path, data, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (i *Integration) GetPickupDates(ctx context.Context, customerID, addressID string) ([]pos.PickupDate, error) {
	var out struct {
		Dates []pos.PickupDate `json:"dates"`
	}
	path := fmt.Sprintf("/api/customers/%s/pickup-dates?address_id=%s", customerID, addressID)
	if err := i.doJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Dates, nil
}

func (i *Integration) SchedulePickup(ctx context.Context, customerID, date string, details pos.PickupDetails) (*pos.Appointment, error) {
	var out pos.Appointment
	payload := map[string]interface{}{
		"date":       date,
		"time_slot":  details.TimeSlot,
		"address_id": details.AddressID,
		"notes":      details.Notes,
	}

	// Deterministic key so a client retry of step 4 cannot double-book
	idemKey := uuid.NewSHA1(pickupNamespaceUUID, []byte(fmt.Sprintf("%s:%s:%s", customerID, date, details.TimeSlot)))
	headers := map[string]string{"X-Idempotency-Key": idemKey.String()}

	path := fmt.Sprintf("/api/customers/%s/pickups", customerID)
	if err := i.doJSON(ctx, http.MethodPost, path, payload, headers, &out); err != nil {
		return nil, err
	}
	i.logger.Infof("Scheduled cleancloud pickup %s for customer %s (%s %s)", out.ID, customerID, date, details.TimeSlot)
	return &out, nil
}

func (i *Integration) ProcessPayment(ctx context.Context, customerID string, payment pos.PaymentData) (*pos.Receipt, error) {
	var out pos.Receipt
	path := fmt.Sprintf("/api/customers/%s/payments", customerID)
	if err := i.doJSON(ctx, http.MethodPost, path, payment, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// errorBody is CleanCloud's error envelope. customer_id accompanies the
// duplicate-customer conflict.
type errorBody struct {
	Error      string `json:"error"`
	CustomerID string `json:"customer_id,omitempty"`
}

func (i *Integration) doJSON(ctx context.Context, method, path string, body interface{}, headers map[string]string, out interface{}) error {
	atomic.AddInt64(&i.apiCallCount, 1)

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &pos.Error{Kind: pos.KindInvalid, Message: "Could not encode request to the point of sale system.", Err: err}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, i.settings.APIURL+path, reqBody)
	if err != nil {
		return &pos.Error{Kind: pos.KindUnavailable, Message: "Could not reach the point of sale system.", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if i.settings.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+i.settings.APIKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return &pos.Error{Kind: pos.KindUnavailable, Message: "The point of sale system is not responding. Please try again.", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &pos.Error{Kind: pos.KindUnavailable, Message: "The point of sale system returned an unreadable response.", Err: err}
		}
		return nil
	}

	var eb errorBody
	_ = json.NewDecoder(resp.Body).Decode(&eb)
	if eb.Error == "" {
		eb.Error = fmt.Sprintf("point of sale request failed with status %d", resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusConflict:
		return &pos.Error{Kind: pos.KindAlreadyExists, Message: eb.Error, CustomerID: eb.CustomerID}
	case http.StatusNotFound:
		return &pos.Error{Kind: pos.KindNotFound, Message: eb.Error}
	case http.StatusPaymentRequired:
		return &pos.Error{Kind: pos.KindDeclined, Message: eb.Error}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &pos.Error{Kind: pos.KindInvalid, Message: eb.Error}
	default:
		return &pos.Error{Kind: pos.KindUnavailable, Message: eb.Error}
	}
}

// APICallCount reports how many API calls this integration has made. Used by
// the metrics endpoint.
func (i *Integration) APICallCount() int64 {
	return atomic.LoadInt64(&i.apiCallCount)
}

package smrt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/pos"

	goeen_log "github.com/eencloud/goeen/log"
)

const VendorName = "smrt"

// SMRT exposes a single RPC endpoint; every operation is a POST of
// {method, params} answered by {ok, result} or {ok:false, error{code,message}}.

type Settings struct {
	Endpoint       string `json:"endpoint"`
	AccountID      string `json:"account_id"`
	APIToken       string `json:"api_token"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func init() {
	pos.Register(VendorName, New)
}

type Integration struct {
	logger   *goeen_log.Logger
	settings Settings
	client   *http.Client
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
		logger:   logger,
		settings: s,
		client:   &http.Client{Timeout: time.Duration(s.TimeoutSeconds) * time.Second},
	}, nil
}

func (i *Integration) Name() string {
	return VendorName
}

func (i *Integration) Start() error {
	if i.settings.Endpoint == "" {
		return fmt.Errorf("smrt endpoint is required")
	}
	i.logger.Infof("Starting smrt integration against %s (account %s)", i.settings.Endpoint, i.settings.AccountID)
	return nil
}

func (i *Integration) Stop(ctx context.Context) error {
	return nil
}

func (i *Integration) CustomerExists(ctx context.Context, email, phone string) (*pos.Customer, error) {
	var out struct {
		Exists   bool          `json:"exists"`
		Customer *pos.Customer `json:"customer"`
	}
	params := map[string]string{"email": email, "phone": phone}
	if err := i.call(ctx, "customer.lookup", params, &out); err != nil {
		return nil, err
	}
	if !out.Exists {
		return nil, nil
	}
	return out.Customer, nil
}

func (i *Integration) CreateCustomer(ctx context.Context, data pos.CustomerData) (*pos.Customer, error) {
	var out pos.Customer
	if err := i.call(ctx, "customer.create", data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (i *Integration) UpdateCustomer(ctx context.Context, customerID string, data pos.CustomerData) (*pos.UpdateResult, error) {
	var out pos.UpdateResult
	params := map[string]interface{}{"customer_id": customerID, "data": data}
	if err := i.call(ctx, "customer.update", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (i *Integration) GetPickupDates(ctx context.Context, customerID, addressID string) ([]pos.PickupDate, error) {
	var out struct {
		Dates []pos.PickupDate `json:"dates"`
	}
	params := map[string]string{"customer_id": customerID, "address_id": addressID}
	if err := i.call(ctx, "route.availableDates", params, &out); err != nil {
		return nil, err
	}
	return out.Dates, nil
}

func (i *Integration) SchedulePickup(ctx context.Context, customerID, date string, details pos.PickupDetails) (*pos.Appointment, error) {
	var out pos.Appointment
	params := map[string]interface{}{
		"customer_id": customerID,
		"date":        date,
		"time_slot":   details.TimeSlot,
		"address_id":  details.AddressID,
		"notes":       details.Notes,
	}
	if err := i.call(ctx, "route.schedulePickup", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (i *Integration) ProcessPayment(ctx context.Context, customerID string, payment pos.PaymentData) (*pos.Receipt, error) {
	var out pos.Receipt
	params := map[string]interface{}{"customer_id": customerID, "payment": payment}
	if err := i.call(ctx, "billing.charge", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type rpcEnvelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	CustomerID string `json:"customer_id,omitempty"`
}

func (i *Integration) call(ctx context.Context, method string, params, out interface{}) error {
	reqBody, err := json.Marshal(map[string]interface{}{
		"account_id": i.settings.AccountID,
		"method":     method,
		"params":     params,
	})
	if err != nil {
		return &pos.Error{Kind: pos.KindInvalid, Message: "Could not encode request to the point of sale system.", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.settings.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return &pos.Error{Kind: pos.KindUnavailable, Message: "Could not reach the point of sale system.", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-SMRT-Token", i.settings.APIToken)

	resp, err := i.client.Do(req)
	if err != nil {
		return &pos.Error{Kind: pos.KindUnavailable, Message: "The point of sale system is not responding. Please try again.", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	var env rpcEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &pos.Error{Kind: pos.KindUnavailable, Message: "The point of sale system returned an unreadable response.", Err: err}
	}

	if !env.OK {
		if env.Error == nil {
			return &pos.Error{Kind: pos.KindUnavailable, Message: fmt.Sprintf("smrt call %s failed with status %d", method, resp.StatusCode)}
		}
		return &pos.Error{
			Kind:       kindFromCode(env.Error.Code),
			Message:    env.Error.Message,
			CustomerID: env.Error.CustomerID,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &pos.Error{Kind: pos.KindUnavailable, Message: "The point of sale system returned an unreadable response.", Err: err}
	}
	return nil
}

func kindFromCode(code string) pos.ErrorKind {
	switch code {
	case "DUPLICATE_CUSTOMER":
		return pos.KindAlreadyExists
	case "NOT_FOUND":
		return pos.KindNotFound
	case "CARD_DECLINED":
		return pos.KindDeclined
	case "VALIDATION":
		return pos.KindInvalid
	default:
		return pos.KindUnavailable
	}
}

package smrt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/eencloud/goeen/log"

	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/pos"
)

type rpcRequest struct {
	AccountID string          `json:"account_id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
}

// newRPCServer answers each method with a canned envelope and records what it saw.
func newRPCServer(t *testing.T, responses map[string]string) (*httptest.Server, *[]rpcRequest) {
	t.Helper()
	var seen []rpcRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Bad RPC request: %v", err)
			return
		}
		seen = append(seen, req)

		resp, ok := responses[req.Method]
		if !ok {
			resp = `{"ok":false,"error":{"code":"NOT_FOUND","message":"unknown method"}}`
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, resp)
	}))
	t.Cleanup(server.Close)
	return server, &seen
}

func newTestIntegration(t *testing.T, endpoint string) pos.Integration {
	t.Helper()

	customFormat := "{{eenTimeStamp .Now}}[{{.Level}}]: {{.Message}}"
	logger := log.NewContext(os.Stderr, customFormat, log.LevelError).GetLogger("test", log.LevelError)

	cfg := fmt.Sprintf(`{"endpoint":%q,"account_id":"acct-1","api_token":"tok"}`, endpoint)
	integration, err := New(logger, json.RawMessage(cfg))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := integration.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return integration
}

func TestCustomerLookup(t *testing.T) {
	server, seen := newRPCServer(t, map[string]string{
		"customer.lookup": `{"ok":true,"result":{"exists":true,"customer":{"id":"c-1","email":"pat@example.com"}}}`,
	})
	integration := newTestIntegration(t, server.URL)

	customer, err := integration.CustomerExists(context.Background(), "pat@example.com", "")
	if err != nil {
		t.Fatalf("CustomerExists failed: %v", err)
	}
	if customer == nil || customer.ID != "c-1" {
		t.Errorf("Unexpected customer: %+v", customer)
	}

	if len(*seen) != 1 || (*seen)[0].Method != "customer.lookup" {
		t.Errorf("Unexpected RPC calls: %+v", *seen)
	}
	if (*seen)[0].AccountID != "acct-1" {
		t.Errorf("Account id not forwarded: %+v", (*seen)[0])
	}
}

func TestCustomerLookupNoMatch(t *testing.T) {
	server, _ := newRPCServer(t, map[string]string{
		"customer.lookup": `{"ok":true,"result":{"exists":false}}`,
	})
	integration := newTestIntegration(t, server.URL)

	customer, err := integration.CustomerExists(context.Background(), "new@example.com", "")
	if err != nil {
		t.Fatalf("CustomerExists failed: %v", err)
	}
	if customer != nil {
		t.Errorf("Expected nil customer, got %+v", customer)
	}
}

func TestDuplicateCustomerError(t *testing.T) {
	server, _ := newRPCServer(t, map[string]string{
		"customer.create": `{"ok":false,"error":{"code":"DUPLICATE_CUSTOMER","message":"customer exists","customer_id":"c-9"}}`,
	})
	integration := newTestIntegration(t, server.URL)

	_, err := integration.CreateCustomer(context.Background(), pos.CustomerData{Email: "dup@example.com"})
	if err == nil {
		t.Fatal("Expected duplicate error")
	}
	existingID, ok := pos.AlreadyExists(err)
	if !ok || existingID != "c-9" {
		t.Errorf("Expected already-exists with c-9, got %v (%v)", existingID, err)
	}
}

func TestErrorCodeMapping(t *testing.T) {
	tests := []struct {
		code string
		want pos.ErrorKind
	}{
		{"DUPLICATE_CUSTOMER", pos.KindAlreadyExists},
		{"NOT_FOUND", pos.KindNotFound},
		{"CARD_DECLINED", pos.KindDeclined},
		{"VALIDATION", pos.KindInvalid},
		{"SOMETHING_ELSE", pos.KindUnavailable},
	}
	for _, tt := range tests {
		if got := kindFromCode(tt.code); got != tt.want {
			t.Errorf("kindFromCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestSchedulePickup(t *testing.T) {
	server, seen := newRPCServer(t, map[string]string{
		"route.schedulePickup": `{"ok":true,"result":{"id":"appt-1","date":"2026-09-02","time_slot":"08:00-10:00"}}`,
	})
	integration := newTestIntegration(t, server.URL)

	appt, err := integration.SchedulePickup(context.Background(), "c-1", "2026-09-02",
		pos.PickupDetails{TimeSlot: "08:00-10:00", AddressID: "a-1"})
	if err != nil {
		t.Fatalf("SchedulePickup failed: %v", err)
	}
	if appt.ID != "appt-1" {
		t.Errorf("Unexpected appointment: %+v", appt)
	}

	var params map[string]interface{}
	if err := json.Unmarshal((*seen)[0].Params, &params); err != nil {
		t.Fatalf("Bad params: %v", err)
	}
	if params["customer_id"] != "c-1" || params["time_slot"] != "08:00-10:00" {
		t.Errorf("Params not forwarded: %+v", params)
	}
}

func TestDeclinedCharge(t *testing.T) {
	server, _ := newRPCServer(t, map[string]string{
		"billing.charge": `{"ok":false,"error":{"code":"CARD_DECLINED","message":"Your card was declined."}}`,
	})
	integration := newTestIntegration(t, server.URL)

	_, err := integration.ProcessPayment(context.Background(), "c-1", pos.PaymentData{Amount: 10})
	if err == nil {
		t.Fatal("Expected declined error")
	}
	if pos.Kind(err) != pos.KindDeclined {
		t.Errorf("Expected declined kind, got %v", pos.Kind(err))
	}
	if err.Error() != "Your card was declined." {
		t.Errorf("Vendor message must pass through verbatim, got %q", err.Error())
	}
}

func TestStartRequiresEndpoint(t *testing.T) {
	customFormat := "{{eenTimeStamp .Now}}[{{.Level}}]: {{.Message}}"
	logger := log.NewContext(os.Stderr, customFormat, log.LevelError).GetLogger("test", log.LevelError)

	integration, err := New(logger, json.RawMessage(`{"account_id":"acct-1"}`))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := integration.Start(); err == nil {
		t.Error("Expected Start to fail without endpoint")
	}
}

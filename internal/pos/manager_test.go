package pos

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	goeen_log "github.com/eencloud/goeen/log"

	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/settings"
)

type testIntegration struct {
	name     string
	started  bool
	stopped  bool
	startErr error
}

func (v *testIntegration) Name() string { return v.name }

func (v *testIntegration) Start() error {
	if v.startErr != nil {
		return v.startErr
	}
	v.started = true
	return nil
}

func (v *testIntegration) Stop(ctx context.Context) error {
	v.stopped = true
	return nil
}

func (v *testIntegration) CustomerExists(context.Context, string, string) (*Customer, error) {
	return nil, nil
}
func (v *testIntegration) CreateCustomer(context.Context, CustomerData) (*Customer, error) {
	return nil, nil
}
func (v *testIntegration) UpdateCustomer(context.Context, string, CustomerData) (*UpdateResult, error) {
	return nil, nil
}
func (v *testIntegration) GetPickupDates(context.Context, string, string) ([]PickupDate, error) {
	return nil, nil
}
func (v *testIntegration) SchedulePickup(context.Context, string, string, PickupDetails) (*Appointment, error) {
	return nil, nil
}
func (v *testIntegration) ProcessPayment(context.Context, string, PaymentData) (*Receipt, error) {
	return nil, nil
}

func testLogger() *goeen_log.Logger {
	customFormat := "{{eenTimeStamp .Now}}[{{.Level}}]: {{.Message}}"
	return goeen_log.NewContext(os.Stderr, customFormat, goeen_log.LevelError).GetLogger("test", goeen_log.LevelError)
}

var lastTestIntegration *testIntegration

func init() {
	Register("managertest", func(logger *goeen_log.Logger, cfg json.RawMessage) (Integration, error) {
		v := &testIntegration{name: "managertest"}
		lastTestIntegration = v
		return v, nil
	})
}

func TestRegisterAndGet(t *testing.T) {
	newFunc, err := Get("managertest")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if newFunc == nil {
		t.Fatal("Expected a constructor")
	}

	_, err = Get("no-such-vendor")
	if err == nil {
		t.Error("Expected error for unknown vendor")
	}

	found := false
	for _, name := range Registered() {
		if name == "managertest" {
			found = true
		}
	}
	if !found {
		t.Errorf("Registered() missing managertest: %v", Registered())
	}
}

func TestManager_StartAndStop(t *testing.T) {
	m := NewManager(testLogger())

	if m.Active() != nil {
		t.Fatal("Expected no active integration initially")
	}

	cfg := &settings.IntegrationConfig{Vendor: "managertest", Config: json.RawMessage(`{}`)}
	if err := m.HandleConfigChange(cfg); err != nil {
		t.Fatalf("HandleConfigChange failed: %v", err)
	}

	active := m.Active()
	if active == nil || active.Name() != "managertest" {
		t.Fatalf("Expected managertest active, got %v", active)
	}
	if !lastTestIntegration.started {
		t.Error("Integration not started")
	}

	started := lastTestIntegration
	if err := m.HandleConfigChange(nil); err != nil {
		t.Fatalf("HandleConfigChange(nil) failed: %v", err)
	}
	if m.Active() != nil {
		t.Error("Expected integration to be stopped")
	}
	if !started.stopped {
		t.Error("Stop not called on previous integration")
	}
}

func TestManager_NoRestartForSameVendor(t *testing.T) {
	m := NewManager(testLogger())

	cfg := &settings.IntegrationConfig{Vendor: "managertest", Config: json.RawMessage(`{}`)}
	if err := m.HandleConfigChange(cfg); err != nil {
		t.Fatalf("HandleConfigChange failed: %v", err)
	}
	first := lastTestIntegration

	if err := m.HandleConfigChange(cfg); err != nil {
		t.Fatalf("HandleConfigChange failed: %v", err)
	}
	if lastTestIntegration != first {
		t.Error("Same vendor config should not create a new integration")
	}
	if first.stopped {
		t.Error("Integration should not be stopped on a no-op change")
	}
}

func TestManager_UnknownVendor(t *testing.T) {
	m := NewManager(testLogger())

	cfg := &settings.IntegrationConfig{Vendor: "ghost-vendor", Config: json.RawMessage(`{}`)}
	if err := m.HandleConfigChange(cfg); err == nil {
		t.Error("Expected error for unknown vendor")
	}
	if m.Active() != nil {
		t.Error("Failed start must not leave an active integration")
	}
}

func TestErrorHelpers(t *testing.T) {
	dup := &Error{Kind: KindAlreadyExists, Message: "exists", CustomerID: "c-5"}
	id, ok := AlreadyExists(dup)
	if !ok || id != "c-5" {
		t.Errorf("AlreadyExists = %q, %v", id, ok)
	}

	if _, ok := AlreadyExists(errors.New("plain")); ok {
		t.Error("Plain errors must not match AlreadyExists")
	}

	if Kind(dup) != KindAlreadyExists {
		t.Errorf("Kind = %v", Kind(dup))
	}
	if Kind(errors.New("plain")) != "" {
		t.Error("Kind of plain error should be empty")
	}

	wrapped := &Error{Kind: KindDeclined, Message: "declined", Err: errors.New("gateway 402")}
	if Kind(wrapped) != KindDeclined {
		t.Errorf("Kind of wrapped = %v", Kind(wrapped))
	}
	if wrapped.Error() != "declined" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}

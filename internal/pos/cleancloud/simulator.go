package cleancloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/eencloud/goeen/log"
	"github.com/google/uuid"
)

// Simulator is an in-process stand-in for the CleanCloud API. It keeps
// customers and appointments in memory and answers the same routes the real
// backend does, so the whole signup flow can run on a laptop.
type Simulator struct {
	logger   *log.Logger
	server   *http.Server
	listener net.Listener

	mutex        sync.Mutex
	customers    map[string]*simCustomer // keyed by customer id
	appointments map[string]simAppointment
}

type simCustomer struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	AddressID string `json:"-"`
}

type simAppointment struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	TimeSlot string `json:"time_slot"`
}

func NewSimulator(logger *log.Logger) *Simulator {
	return &Simulator{
		logger:       logger,
		customers:    make(map[string]*simCustomer),
		appointments: make(map[string]simAppointment),
	}
}

func (s *Simulator) Start() error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("simulator listen failed: %w", err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/api/customers/search", s.handleSearch)
	mux.HandleFunc("/api/customers", s.handleCreate)
	mux.HandleFunc("/api/customers/", s.handleCustomerSubroutes)

	s.server = &http.Server{Handler: mux}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("Simulator server failed: %v", err)
		}
	}()

	s.logger.Infof("CleanCloud simulator listening on %s", s.BaseURL())
	return nil
}

func (s *Simulator) BaseURL() string {
	return "http://" + s.listener.Addr().String()
}

func (s *Simulator) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Simulator) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSimError(w, http.StatusBadRequest, "invalid search payload", "")
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, c := range s.customers {
		if (req.Email != "" && c.Email == req.Email) || (req.Phone != "" && c.Phone == req.Phone) {
			writeSimJSON(w, http.StatusOK, map[string]interface{}{"exists": true, "customer": c})
			return
		}
	}
	writeSimJSON(w, http.StatusOK, map[string]interface{}{"exists": false})
}

func (s *Simulator) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeSimError(w, http.StatusMethodNotAllowed, "POST only", "")
		return
	}

	var req simCustomer
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSimError(w, http.StatusBadRequest, "invalid customer payload", "")
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, c := range s.customers {
		if c.Email == req.Email {
			// Same conflict shape the production API uses
			writeSimError(w, http.StatusConflict, "A customer with this email already exists.", c.ID)
			return
		}
	}

	req.ID = uuid.New().String()
	s.customers[req.ID] = &req
	s.logger.Debugf("Simulator created customer %s (%s)", req.ID, req.Email)
	writeSimJSON(w, http.StatusCreated, &req)
}

func (s *Simulator) handleCustomerSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/customers/")
	parts := strings.Split(rest, "/")
	customerID := parts[0]

	s.mutex.Lock()
	customer, exists := s.customers[customerID]
	s.mutex.Unlock()
	if !exists {
		writeSimError(w, http.StatusNotFound, "customer not found", "")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		s.handleUpdate(w, r, customer)
	case len(parts) == 2 && parts[1] == "pickup-dates":
		s.handlePickupDates(w, r)
	case len(parts) == 2 && parts[1] == "pickups":
		s.handleSchedulePickup(w, r)
	case len(parts) == 2 && parts[1] == "payments":
		s.handlePayment(w, r)
	default:
		writeSimError(w, http.StatusNotFound, "unknown route", "")
	}
}

func (s *Simulator) handleUpdate(w http.ResponseWriter, r *http.Request, customer *simCustomer) {
	var req struct {
		Address *struct {
			Street string `json:"street"`
		} `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSimError(w, http.StatusBadRequest, "invalid update payload", "")
		return
	}

	s.mutex.Lock()
	if customer.AddressID == "" {
		customer.AddressID = "addr_" + uuid.New().String()[:8]
	}
	addressID := customer.AddressID
	s.mutex.Unlock()

	writeSimJSON(w, http.StatusOK, map[string]interface{}{
		"address_id": addressID,
		"updated":    true,
	})
}

func (s *Simulator) handlePickupDates(w http.ResponseWriter, r *http.Request) {
	// Next five weekdays, fixed slot grid
	slots := []string{"08:00-10:00", "10:00-12:00", "14:00-16:00"}
	var dates []map[string]interface{}

	day := time.Now()
	for len(dates) < 5 {
		day = day.AddDate(0, 0, 1)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		dates = append(dates, map[string]interface{}{
			"date":       day.Format("2006-01-02"),
			"time_slots": slots,
		})
	}

	writeSimJSON(w, http.StatusOK, map[string]interface{}{"dates": dates})
}

func (s *Simulator) handleSchedulePickup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date     string `json:"date"`
		TimeSlot string `json:"time_slot"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Date == "" {
		writeSimError(w, http.StatusBadRequest, "invalid pickup payload", "")
		return
	}

	// Idempotency: same key returns the original appointment
	key := r.Header.Get("X-Idempotency-Key")
	if key == "" {
		key = uuid.New().String()
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if appt, exists := s.appointments[key]; exists {
		writeSimJSON(w, http.StatusOK, appt)
		return
	}

	appt := simAppointment{
		ID:       "appt_" + uuid.New().String()[:8],
		Date:     req.Date,
		TimeSlot: req.TimeSlot,
	}
	s.appointments[key] = appt
	writeSimJSON(w, http.StatusCreated, appt)
}

func (s *Simulator) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardNumber string  `json:"card_number"`
		Amount     float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSimError(w, http.StatusBadRequest, "invalid payment payload", "")
		return
	}

	// Test card that always declines, mirroring vendor sandbox behavior
	if strings.HasSuffix(req.CardNumber, "0002") {
		writeSimError(w, http.StatusPaymentRequired, "Your card was declined.", "")
		return
	}

	writeSimJSON(w, http.StatusOK, map[string]interface{}{
		"transaction_id": "txn_" + uuid.New().String()[:8],
		"amount":         req.Amount,
	})
}

func writeSimJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSimError(w http.ResponseWriter, status int, message, customerID string) {
	body := map[string]string{"error": message}
	if customerID != "" {
		body["customer_id"] = customerID
	}
	writeSimJSON(w, status, body)
}

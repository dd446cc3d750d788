package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/forms"
	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/signup"
)

var serviceStartTime = time.Now()

const maxBodyBytes = 64 << 10

// envelope is the uniform response wrapper. Success responses carry data,
// failures carry a user-facing message.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func respondOK(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}

// respondStepError maps the wizard's error taxonomy onto HTTP statuses.
func (s *Server) respondStepError(w http.ResponseWriter, err error) {
	var stepErr *signup.StepError
	if !errors.As(err, &stepErr) {
		s.Logger.Errorf("Unclassified handler error: %v", err)
		respondError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	switch stepErr.Code {
	case signup.CodeSecurity:
		respondError(w, http.StatusForbidden, stepErr.Message)
	case signup.CodeValidation:
		respondError(w, http.StatusBadRequest, stepErr.Message)
	case signup.CodeNotFound:
		respondError(w, http.StatusNotFound, stepErr.Message)
	default:
		respondError(w, http.StatusBadGateway, stepErr.Message)
	}
}

// readBody reads and audits a raw form payload before decoding.
func (s *Server) readBody(r *http.Request, formType string, step int) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if s.Audit != nil {
		if err := s.Audit.Log(formType, step, r.RemoteAddr, redactForAudit(body)); err != nil {
			s.Logger.Warningf("Audit log write failed: %v", err)
		}
	}
	return body, nil
}

// Card data must never reach disk. The audit trail gets the card number
// masked to its last four digits and the rest of the block dropped.
var redactedFields = []string{"cvc", "exp_month", "exp_year"}

func redactForAudit(body []byte) []byte {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return body
	}

	touched := false
	if num, ok := payload["card_number"].(string); ok && num != "" {
		masked := "[redacted]"
		if len(num) > 4 {
			masked = "****" + num[len(num)-4:]
		}
		payload["card_number"] = masked
		touched = true
	}
	for _, field := range redactedFields {
		if v, ok := payload[field].(string); ok && v != "" {
			payload[field] = "[redacted]"
			touched = true
		}
	}
	if !touched {
		return body
	}

	redacted, err := json.Marshal(payload)
	if err != nil {
		return body
	}
	return redacted
}

func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	token, err := s.Wizard.BootstrapToken()
	if err != nil {
		s.Logger.Errorf("Failed to issue bootstrap token: %v", err)
		respondError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	respondOK(w, map[string]interface{}{"step": 1, "token": token})
}

func (s *Server) stepHandler(w http.ResponseWriter, r *http.Request) {
	step := chi.URLParam(r, "step")

	body, err := s.readBody(r, signup.FormSignup, stepNumber(step))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Error reading request body")
		return
	}

	var result interface{}
	var stepErr error

	switch step {
	case "1":
		var req signup.Step1Request
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Please check your information and try again.")
			return
		}
		result, stepErr = s.Wizard.Step1(r.Context(), &req)
	case "2":
		var req signup.Step2Request
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Please check your information and try again.")
			return
		}
		result, stepErr = s.Wizard.Step2(r.Context(), &req)
	case "3":
		var req signup.Step3Request
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Please check your information and try again.")
			return
		}
		result, stepErr = s.Wizard.Step3(r.Context(), &req)
	case "4":
		var req signup.Step4Request
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Please check your information and try again.")
			return
		}
		result, stepErr = s.Wizard.Step4(r.Context(), &req)
	default:
		respondError(w, http.StatusNotFound, "Unknown signup step")
		return
	}

	if stepErr != nil {
		s.respondStepError(w, stepErr)
		return
	}
	respondOK(w, result)
}

func stepNumber(step string) int {
	switch step {
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	}
	return 0
}

func (s *Server) pickupDatesHandler(w http.ResponseWriter, r *http.Request) {
	submissionID := r.URL.Query().Get("submission_id")
	token := r.URL.Query().Get("token")
	if submissionID == "" || token == "" {
		respondError(w, http.StatusBadRequest, "submission_id and token parameters required")
		return
	}

	dates, err := s.Wizard.PickupDates(r.Context(), submissionID, token)
	if err != nil {
		s.respondStepError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{"pickup_dates": dates})
}

func (s *Server) contactHandler(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(r, signup.FormContact, 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Error reading request body")
		return
	}

	var req forms.ContactRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Please check your information and try again.")
		return
	}

	result, err := s.Forms.Contact(&req)
	if err != nil {
		s.respondStepError(w, err)
		return
	}
	respondOK(w, result)
}

func (s *Server) optinHandler(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(r, signup.FormOptIn, 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Error reading request body")
		return
	}

	var req forms.OptInRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Please check your information and try again.")
		return
	}

	result, err := s.Forms.OptIn(&req)
	if err != nil {
		s.respondStepError(w, err)
		return
	}
	respondOK(w, result)
}

func (s *Server) updateIntegrationHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Error reading request body")
		return
	}

	if err := s.SettingsManager.UpdateSettings(body); err != nil {
		s.Logger.Errorf("Failed to process integration settings: %v", err)
		respondError(w, http.StatusBadRequest, "Invalid integration configuration")
		return
	}

	respondOK(w, map[string]interface{}{"updated": true})
}

func (s *Server) currentIntegrationHandler(w http.ResponseWriter, r *http.Request) {
	cfg := s.SettingsManager.GetActiveIntegration()
	if cfg == nil {
		respondOK(w, map[string]interface{}{"vendor": nil})
		return
	}
	// Vendor config may hold credentials; only the name leaves the service.
	respondOK(w, map[string]interface{}{"vendor": cfg.Vendor})
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")

	var dbMetrics map[string]interface{}
	if s.Store != nil && s.Store.GetDB() != nil {
		totalKeys, totalSize := s.Store.GetDB().EstimateSize(nil)
		dbMetrics = map[string]interface{}{
			"total_keys": totalKeys,
			"size_mb":    totalSize / 1024 / 1024,
			"status":     "ok",
		}
		if counts, err := s.Store.CountByStatus(); err == nil {
			dbMetrics["submissions_by_status"] = counts
		}
	} else {
		dbMetrics = map[string]interface{}{"status": "not_initialized"}
	}

	integrationMetrics := map[string]interface{}{"status": "no_active_integration"}
	if s.Integrations != nil {
		if active := s.Integrations.Active(); active != nil {
			integrationMetrics = map[string]interface{}{
				"vendor": active.Name(),
				"status": "active",
			}
		}
	}

	var notifierMetrics map[string]interface{}
	if s.Notifier != nil {
		notifierMetrics = s.Notifier.HealthStats()
	} else {
		notifierMetrics = map[string]interface{}{"status": "not_configured"}
	}

	var auditMetrics map[string]interface{}
	if s.Audit != nil {
		auditMetrics = s.Audit.GetStats()
	}

	hostname, _ := os.Hostname()
	respondOK(w, map[string]interface{}{
		"service": map[string]interface{}{
			"uptime_seconds": time.Since(serviceStartTime).Seconds(),
			"mode":           os.Getenv("MODE"),
			"pid":            os.Getpid(),
			"hostname":       hostname,
		},
		"database":    dbMetrics,
		"integration": integrationMetrics,
		"webhooks":    notifierMetrics,
		"audit":       auditMetrics,
		"timestamp":   time.Now(),
	})
}

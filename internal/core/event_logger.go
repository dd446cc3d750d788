package core

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// EventLogger writes structured JSON-lines lifecycle events (step completed,
// customer created, pickup scheduled) for downstream analytics ingestion.
// Operational logging stays on the main application logger.
type EventLogger struct {
	logger      *log.Logger
	level       LogLevel
	logFile     *os.File
	mutex       sync.Mutex
	component   string
	environment string
	version     string
}

type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	LogLevel  string                 `json:"level"`
	Function  string                 `json:"function"`
	File      string                 `json:"file"`
	LineNo    int                    `json:"line"`
	Message   string                 `json:"message"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

func NewEventLogger(component, logFilePath string, level LogLevel) (*EventLogger, error) {
	return NewEventLoggerWithContext(component, logFilePath, "development", "1.0.0", level)
}

func NewEventLoggerWithContext(component, logFilePath, environment, version string, level LogLevel) (*EventLogger, error) {
	var logFile *os.File
	var err error

	if logFilePath != "" {
		logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
	}

	logger := log.New(os.Stdout, "", 0)
	if logFile != nil {
		logger.SetOutput(logFile)
	}

	return &EventLogger{
		logger:      logger,
		level:       level,
		logFile:     logFile,
		component:   component,
		environment: environment,
		version:     version,
	}, nil
}

func (e *EventLogger) log(level LogLevel, message string, data map[string]interface{}, err error) {
	if level < e.level {
		return
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	// Get caller info
	_, file, line, ok := runtime.Caller(2)
	function := "unknown"
	if ok {
		if pc, _, _, ok := runtime.Caller(2); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				function = fn.Name()
			}
		}
	}

	// Clean up the file path - just show filename instead of full path
	if file != "" {
		if idx := strings.LastIndex(file, "/"); idx != -1 {
			file = file[idx+1:]
		}
	}

	// Skip data if it's empty to avoid NULL in logs
	var extraData map[string]interface{}
	if len(data) > 0 {
		extraData = data
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		LogLevel:  e.levelToString(level),
		Function:  function,
		File:      file,
		LineNo:    line,
		Message:   message,
		Extra:     extraData,
	}

	if err != nil {
		entry.Error = err.Error()
	}

	jsonBytes, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		e.logger.Printf("LOG_ERROR: Failed to marshal log entry: %v", marshalErr)
		return
	}

	e.logger.Println(string(jsonBytes))
}

func (e *EventLogger) levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARNING"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (e *EventLogger) Debug(message string, data map[string]interface{}) {
	e.log(DEBUG, message, data, nil)
}

func (e *EventLogger) Info(message string, data map[string]interface{}) {
	e.log(INFO, message, data, nil)
}

func (e *EventLogger) Warn(message string, data map[string]interface{}) {
	e.log(WARN, message, data, nil)
}

func (e *EventLogger) Error(message string, data map[string]interface{}, err error) {
	e.log(ERROR, message, data, err)
}

// ===== SIGNUP LIFECYCLE EVENTS (INFO LEVEL) =====

func (e *EventLogger) LogStartup(config map[string]interface{}) {
	vendor := "unknown"
	simulationMode := false
	if v, ok := config["vendor"].(string); ok {
		vendor = v
	}
	if s, ok := config["simulation_mode"].(bool); ok {
		simulationMode = s
	}

	e.Info("cleaner-marketing-forms started", map[string]interface{}{
		"environment":     e.environment,
		"version":         e.version,
		"vendor":          vendor,
		"simulation_mode": simulationMode,
		"startup_time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (e *EventLogger) LogStepCompleted(submissionID string, step int, formType string) {
	e.Info("signup step completed", map[string]interface{}{
		"submission_id": submissionID,
		"step":          step,
		"form_type":     formType,
		"completed_at":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (e *EventLogger) LogSignupCompleted(submissionID, customerID string, lastStep int) {
	e.Info("signup completed", map[string]interface{}{
		"submission_id": submissionID,
		"customer_id":   customerID,
		"last_step":     lastStep,
		"completed_at":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (e *EventLogger) LogCustomerCreated(submissionID, customerID, vendor string) {
	e.Info("pos customer created", map[string]interface{}{
		"submission_id": submissionID,
		"customer_id":   customerID,
		"vendor":        vendor,
	})
}

func (e *EventLogger) LogExistingCustomerBlocked(email string) {
	e.Info("signup blocked, customer exists", map[string]interface{}{
		"email": email,
	})
}

func (e *EventLogger) LogPickupScheduled(submissionID, customerID, date, timeSlot string) {
	e.Info("pickup scheduled", map[string]interface{}{
		"submission_id": submissionID,
		"customer_id":   customerID,
		"pickup_date":   date,
		"time_slot":     timeSlot,
	})
}

func (e *EventLogger) LogPaymentProcessed(submissionID, customerID string, amount float64) {
	e.Info("payment processed", map[string]interface{}{
		"submission_id": submissionID,
		"customer_id":   customerID,
		"amount":        amount,
	})
}

func (e *EventLogger) LogIntegrationError(submissionID, operation string, err error) {
	e.Error("integration call failed", map[string]interface{}{
		"submission_id": submissionID,
		"operation":     operation,
	}, err)
}

func (e *EventLogger) LogIntegrationSwitched(vendor string) {
	e.Info("pos integration switched", map[string]interface{}{
		"vendor":      vendor,
		"switched_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// ===== DETAILED TRACKING (DEBUG LEVEL) =====

func (e *EventLogger) LogStateTransition(submissionID string, fromStep, toStep int, trigger string) {
	e.Debug("wizard transition", map[string]interface{}{
		"submission_id": submissionID,
		"from_step":     fromStep,
		"to_step":       toStep,
		"trigger":       trigger,
	})
}

func (e *EventLogger) LogNotificationSent(kind, target string, duration time.Duration) {
	e.Debug("notification sent", map[string]interface{}{
		"kind":        kind,
		"target":      target,
		"duration_ms": duration.Milliseconds(),
	})
}

func (e *EventLogger) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.logFile != nil {
		return e.logFile.Close()
	}
	return nil
}

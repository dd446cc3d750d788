package notify

import (
	"sync"
	"time"
)

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// HealthMonitor is a small circuit breaker guarding the webhook endpoint. A
// run of failures opens the circuit so a dead endpoint is skipped instead of
// hammered; after the recovery timeout one probe is let through.
type HealthMonitor struct {
	successCount     int64
	failureCount     int64
	lastResponse     time.Time
	circuitState     CircuitState
	failureThreshold int
	recoveryTimeout  time.Duration
	mutex            sync.RWMutex
}

func NewHealthMonitor(failureThreshold int, recoveryTimeout time.Duration) *HealthMonitor {
	return &HealthMonitor{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		circuitState:     CircuitClosed,
	}
}

func (hm *HealthMonitor) CanProceed() bool {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	switch hm.circuitState {
	case CircuitOpen:
		if time.Since(hm.lastResponse) > hm.recoveryTimeout {
			// Try to transition to half-open
			hm.circuitState = CircuitHalfOpen
			return true
		}
		return false
	case CircuitHalfOpen, CircuitClosed:
		return true
	default:
		return false
	}
}

func (hm *HealthMonitor) RecordSuccess() {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	hm.successCount++
	hm.lastResponse = time.Now()

	if hm.circuitState == CircuitHalfOpen {
		hm.circuitState = CircuitClosed
		hm.failureCount = 0 // Reset failure count on recovery
	}
}

func (hm *HealthMonitor) RecordFailure() {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	hm.failureCount++
	hm.lastResponse = time.Now()

	if hm.failureCount >= int64(hm.failureThreshold) {
		hm.circuitState = CircuitOpen
	}
}

func (hm *HealthMonitor) GetCircuitState() CircuitState {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()
	return hm.circuitState
}

func (hm *HealthMonitor) GetStats() map[string]interface{} {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()

	stateNames := map[CircuitState]string{
		CircuitClosed:   "closed",
		CircuitOpen:     "open",
		CircuitHalfOpen: "half_open",
	}

	return map[string]interface{}{
		"circuit_state": stateNames[hm.circuitState],
		"success_count": hm.successCount,
		"failure_count": hm.failureCount,
	}
}

package settings

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/eencloud/goeen/log"
)

// IntegrationConfig defines the structure for a single POS vendor's
// configuration block.
type IntegrationConfig struct {
	Vendor string          `json:"vendor"`
	Config json.RawMessage `json:"config"`
}

// Manager handles the storage and retrieval of the POS integration
// configuration. The active config can be replaced at runtime through the
// admin API; consumers watch Changes() and swap the live adapter.
type Manager struct {
	sync.RWMutex
	logger            *log.Logger
	activeIntegration *IntegrationConfig
	changeChan        chan struct{}
	updateCallback    func(cfg *IntegrationConfig)
}

// NewManager creates a new configuration manager.
func NewManager(logger *log.Logger) *Manager {
	return &Manager{
		logger:     logger,
		changeChan: make(chan struct{}, 1),
	}
}

// UpdateSettings parses an integration payload and replaces the active
// config. An empty vendor name deactivates the integration.
func (m *Manager) UpdateSettings(payload []byte) error {
	m.Lock()
	defer m.Unlock()

	var cfg IntegrationConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return fmt.Errorf("could not unmarshal integration payload: %w", err)
	}

	if cfg.Vendor != "" {
		m.logger.Infof("Received integration configuration for vendor %s", cfg.Vendor)
		m.activeIntegration = &cfg

		if m.updateCallback != nil {
			m.updateCallback(&cfg)
		}
	} else {
		m.logger.Info("Empty vendor name. Deactivating integration.")
		m.activeIntegration = nil

		if m.updateCallback != nil {
			m.updateCallback(nil)
		}
	}

	m.notifyChange()
	return nil
}

// GetActiveIntegration returns a copy of the current active configuration.
func (m *Manager) GetActiveIntegration() *IntegrationConfig {
	m.RLock()
	defer m.RUnlock()

	if m.activeIntegration == nil {
		return nil
	}

	cfgCopy := *m.activeIntegration
	return &cfgCopy
}

// Changes returns a channel that signals when settings have been updated.
func (m *Manager) Changes() <-chan struct{} {
	return m.changeChan
}

// SetUpdateCallback sets the function to call when the integration
// configuration is replaced.
func (m *Manager) SetUpdateCallback(callback func(cfg *IntegrationConfig)) {
	m.Lock()
	defer m.Unlock()
	m.updateCallback = callback
}

func (m *Manager) notifyChange() {
	select {
	case m.changeChan <- struct{}{}:
	default:
	}
}

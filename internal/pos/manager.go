package pos

import (
	"context"
	"sync"

	"github.com/cleanermarketing/cleaner-marketing-forms-sub004/internal/settings"

	"github.com/eencloud/goeen/log"
)

// Manager owns the active POS integration and swaps it when the settings
// manager delivers a new configuration.
type Manager struct {
	logger *log.Logger
	mutex  sync.RWMutex
	active Integration
}

func NewManager(logger *log.Logger) *Manager {
	return &Manager{
		logger: logger,
	}
}

// Active returns the currently running integration, or nil when none is
// configured.
func (m *Manager) Active() Integration {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.active
}

// HandleConfigChange stops/starts/swaps the active integration to match the
// given configuration. A nil config stops the current integration.
func (m *Manager) HandleConfigChange(cfg *settings.IntegrationConfig) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.shouldRestart(cfg) {
		return nil
	}

	if err := m.stopCurrent(); err != nil {
		return err
	}

	if cfg != nil {
		return m.startNew(cfg)
	}
	return nil
}

func (m *Manager) shouldRestart(cfg *settings.IntegrationConfig) bool {
	if m.active == nil {
		m.logger.Info("No active integration - starting new integration")
		return true
	}
	if cfg == nil {
		m.logger.Info("No integration configuration - stopping current integration")
		return true
	}
	if m.active.Name() != cfg.Vendor {
		m.logger.Infof("Integration vendor changed: %s -> %s", m.active.Name(), cfg.Vendor)
		return true
	}

	m.logger.Infof("Integration already active - no restart needed")
	return false
}

func (m *Manager) stopCurrent() error {
	if m.active != nil {
		m.logger.Infof("Stopping current integration: %s", m.active.Name())
		if err := m.active.Stop(context.Background()); err != nil {
			m.logger.Errorf("Error stopping integration %s: %v", m.active.Name(), err)
			return err
		}
		m.active = nil
	}
	return nil
}

func (m *Manager) startNew(cfg *settings.IntegrationConfig) error {
	newFunc, err := Get(cfg.Vendor)
	if err != nil {
		m.logger.Errorf("Failed to get integration: %v", err)
		return err
	}

	integration, err := newFunc(m.logger, cfg.Config)
	if err != nil {
		m.logger.Errorf("Failed to create integration: %v", err)
		return err
	}

	if err := integration.Start(); err != nil {
		m.logger.Errorf("Failed to start integration: %v", err)
		return err
	}

	m.active = integration
	return nil
}

// Stop shuts down the active integration, if any.
func (m *Manager) Stop() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.stopCurrent()
}

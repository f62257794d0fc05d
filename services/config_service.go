package services

import (
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/open-teleop/mujoco-bridge/pkg/config"
	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
)

// ErrConfigNotLoaded is returned while no sim config could be loaded.
var ErrConfigNotLoaded = errors.New("sim configuration not loaded")

// SimConfigService defines the interface for accessing the operational sim configuration.
type SimConfigService interface {
	LoadConfig() error
	GetCurrentConfig() *config.SimConfig
	GetCurrentConfigYAML() ([]byte, error)
	Path() string
}

// simConfigService implements the SimConfigService interface.
type simConfigService struct {
	path          string
	logger        customlog.Logger
	currentConfig *config.SimConfig
	mu            sync.RWMutex
}

// NewSimConfigService creates a new SimConfigService and loads the file at
// path. A load failure is returned together with the service.
func NewSimConfigService(path string, logger customlog.Logger) (SimConfigService, error) {
	if path == "" {
		return nil, fmt.Errorf("sim configuration path cannot be empty")
	}
	if logger == nil {
		logger = customlog.Discard()
	}

	service := &simConfigService{
		path:   path,
		logger: logger,
	}
	if err := service.LoadConfig(); err != nil {
		return service, err
	}

	logger.Infof("SimConfigService initialized for path: %s", path)
	return service, nil
}

// LoadConfig reads the sim config file from disk, applies defaults and
// replaces the current configuration. The current configuration is kept
// when the file cannot be loaded.
func (s *simConfigService) LoadConfig() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Infof("Loading sim configuration from: %s", s.path)
	cfg, err := config.LoadSimConfig(s.path)
	if err != nil {
		s.logger.Errorf("Error loading sim config file '%s': %v", s.path, err)
		return fmt.Errorf("error loading sim config file '%s': %w", s.path, err)
	}

	s.currentConfig = cfg
	s.logger.Infof("Loaded sim configuration ID: %s, Version: %s (%d joints, %d objects)",
		cfg.ConfigID, cfg.Version, len(cfg.Joints), cfg.Objects())
	return nil
}

// GetCurrentConfig returns the loaded configuration, or nil. Callers must
// treat it as read-only.
func (s *simConfigService) GetCurrentConfig() *config.SimConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentConfig
}

// GetCurrentConfigYAML returns the effective configuration, defaults
// included, as YAML.
func (s *simConfigService) GetCurrentConfigYAML() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentConfig == nil {
		return nil, ErrConfigNotLoaded
	}
	data, err := yaml.Marshal(s.currentConfig)
	if err != nil {
		return nil, fmt.Errorf("error serializing sim config: %w", err)
	}
	return data, nil
}

func (s *simConfigService) Path() string { return s.path }

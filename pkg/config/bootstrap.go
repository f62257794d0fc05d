package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BootstrapFileName is the bootstrap config file looked up in the config directory.
const BootstrapFileName = "bridge_config.yaml"

// BootstrapConfig holds the initial configuration loaded from bridge_config.yaml
type BootstrapConfig struct {
	Logging    LoggingConfig    `yaml:"logging"`
	ROS        ROSConfig        `yaml:"ros"`
	Server     ServerConfig     `yaml:"server"`
	ZeroMQ     ZeroMQBootstrap  `yaml:"zeromq"`
	Processing ProcessingConfig `yaml:"processing"`
	Recorder   RecorderConfig   `yaml:"recorder"`
	Data       DataConfig       `yaml:"data"`
}

// LoggingConfig holds logging settings from bootstrap
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogPath string `yaml:"log_path,omitempty"`
}

// ROSConfig says how the node joins the ROS graph.
type ROSConfig struct {
	MasterAddress string `yaml:"master_address"`
	NodeName      string `yaml:"node_name"`
	Namespace     string `yaml:"namespace,omitempty"`
	Host          string `yaml:"host,omitempty"`
}

// ServerConfig holds the status HTTP server settings. Port 0 disables it.
type ServerConfig struct {
	HTTPPort int `yaml:"http_port"`
}

// ZeroMQBootstrap holds ZeroMQ settings from bootstrap. Empty addresses
// disable the matching socket.
type ZeroMQBootstrap struct {
	PublishBindAddress string `yaml:"publish_bind_address"`
	RequestBindAddress string `yaml:"request_bind_address"`
	// StatusIntervalMs is the period of the JSON status heartbeat on the
	// PUB socket. 0 disables it.
	StatusIntervalMs int `yaml:"status_interval_ms"`
}

// ProcessingConfig sizes the step result worker pool.
type ProcessingConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// RecorderConfig points at the SQLite step log. Empty path disables recording.
type RecorderConfig struct {
	Path string `yaml:"path"`
}

// DataConfig holds data directory settings from bootstrap
type DataConfig struct {
	Directory         string `yaml:"directory"`
	SimConfigFilename string `yaml:"sim_config_file"`
}

// SimConfigPath joins the data directory and the sim config file name.
func (c *BootstrapConfig) SimConfigPath() string {
	return filepath.Join(c.Data.Directory, c.Data.SimConfigFilename)
}

// LoadBootstrapConfig loads the bootstrap configuration from bridge_config.yaml
func LoadBootstrapConfig(configDir string) (*BootstrapConfig, error) {
	bootstrapConfigPath := filepath.Join(configDir, BootstrapFileName)

	data, err := os.ReadFile(bootstrapConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	var bootstrapCfg BootstrapConfig
	if err := yaml.Unmarshal(data, &bootstrapCfg); err != nil {
		return nil, fmt.Errorf("error parsing bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	if bootstrapCfg.ROS.MasterAddress == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: ros.master_address")
	}
	if bootstrapCfg.ROS.NodeName == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: ros.node_name")
	}
	if bootstrapCfg.Data.Directory == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: data.directory")
	}
	if bootstrapCfg.Data.SimConfigFilename == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: data.sim_config_file")
	}

	if bootstrapCfg.Logging.Level == "" {
		bootstrapCfg.Logging.Level = "info"
	}
	if bootstrapCfg.ROS.Namespace == "" {
		bootstrapCfg.ROS.Namespace = "/"
	}
	if bootstrapCfg.Processing.Workers <= 0 {
		bootstrapCfg.Processing.Workers = 1
	}
	if bootstrapCfg.Processing.QueueSize <= 0 {
		bootstrapCfg.Processing.QueueSize = 100
	}

	return &bootstrapCfg, nil
}

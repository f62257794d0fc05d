package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadSimConfig(t *testing.T) {
	tempDir := t.TempDir()

	configContent := `
version: "1.0"
config_id: "ur5-gripper"
robot_id: "ur5-sim"
objects_in_scene: 1

joints:
  - name: "shoulder_pan_joint"
    start_pose: 0.5
  - name: "shoulder_lift_joint"
    start_pose: -1.2
    velocity_set_point: 0.1
  - name: "elbow_joint"

defaults:
  velocity_set_point: 0.02

topics:
  joint_states_in: "commands"

marker:
  namespace: "boxes"
`

	configPath := filepath.Join(tempDir, "sim_config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	config, err := LoadSimConfig(configPath)
	if err != nil {
		t.Fatalf("LoadSimConfig failed: %v", err)
	}

	if config.ConfigID != "ur5-gripper" {
		t.Errorf("Expected config_id ur5-gripper, got %s", config.ConfigID)
	}
	if config.Objects() != 1 {
		t.Errorf("Expected 1 object in scene, got %d", config.Objects())
	}

	wantNames := []string{"shoulder_pan_joint", "shoulder_lift_joint", "elbow_joint"}
	if !reflect.DeepEqual(config.JointNames(), wantNames) {
		t.Errorf("Expected joints %v, got %v", wantNames, config.JointNames())
	}

	wantPose := []float64{0.5, -1.2, 0}
	if !reflect.DeepEqual(config.StartPose(), wantPose) {
		t.Errorf("Expected start pose %v, got %v", wantPose, config.StartPose())
	}

	wantVel := []float64{0.02, 0.1, 0.02}
	if !reflect.DeepEqual(config.VelocitySetPoints(), wantVel) {
		t.Errorf("Expected velocity set points %v, got %v", wantVel, config.VelocitySetPoints())
	}

	// Banks follow the joint count when not given
	if !reflect.DeepEqual(config.Actuators, Banks(0, 3, 6)) {
		t.Errorf("Unexpected actuator banks %+v", config.Actuators)
	}

	if config.Topics.JointStatesIn != "commands" {
		t.Errorf("Expected joint_states_in commands, got %s", config.Topics.JointStatesIn)
	}
	if config.Topics.JointStates != "/joint_states" {
		t.Errorf("Expected default /joint_states, got %s", config.Topics.JointStates)
	}
	if config.Marker.Namespace != "boxes" || config.Marker.FrameID != "/world" {
		t.Errorf("Unexpected marker config %+v", config.Marker)
	}
}

func TestDefaultSimConfig(t *testing.T) {
	config := DefaultSimConfig()

	if !reflect.DeepEqual(config.JointNames(), DefaultJointNames) {
		t.Errorf("Expected default joints, got %v", config.JointNames())
	}
	if config.Objects() != 1 {
		t.Errorf("Expected 1 object in scene, got %d", config.Objects())
	}
	if !reflect.DeepEqual(config.Actuators, Banks(0, 8, 16)) {
		t.Errorf("Expected banks 0/8/16, got %+v", config.Actuators)
	}
	if config.Topics.JointStatesOut != "joint_states_out" || config.Topics.Marker != "/visualization_marker" {
		t.Errorf("Unexpected default topics %+v", config.Topics)
	}
	for i, v := range config.StartPose() {
		if v != 0 {
			t.Errorf("Expected zero start pose for joint %d, got %f", i, v)
		}
	}
}

func TestZeroObjectsIsKept(t *testing.T) {
	config, err := ParseSimConfig([]byte("objects_in_scene: 0\n"))
	if err != nil {
		t.Fatalf("ParseSimConfig failed: %v", err)
	}
	if config.Objects() != 0 {
		t.Errorf("Expected 0 objects, got %d", config.Objects())
	}
}

func TestExplicitZeroBankOffsetsAreKept(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want ActuatorBanks
	}{
		{
			name: "velocity bank first",
			yaml: "actuators:\n  velocity: 0\n  gravity: 8\n  position: 16\n",
			want: Banks(8, 16, 0),
		},
		{
			name: "position bank first",
			yaml: "actuators:\n  position: 0\n  gravity: 16\n",
			want: Banks(16, 0, 8),
		},
		{
			name: "only gravity given",
			yaml: "actuators:\n  gravity: 4\n",
			want: Banks(4, 12, 20),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := ParseSimConfig([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("ParseSimConfig failed: %v", err)
			}
			g, p, v := config.Actuators.Offsets()
			wg, wp, wv := tt.want.Offsets()
			if g != wg || p != wp || v != wv {
				t.Errorf("Expected banks %d/%d/%d, got %d/%d/%d", wg, wp, wv, g, p, v)
			}
		})
	}
}

func TestSimConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "duplicate joint",
			yaml:    "joints:\n  - name: a\n  - name: a\n",
			wantErr: "duplicate joint name 'a'",
		},
		{
			name:    "unnamed joint",
			yaml:    "joints:\n  - start_pose: 1\n",
			wantErr: "joint 0 has no name",
		},
		{
			name:    "negative objects",
			yaml:    "objects_in_scene: -1\n",
			wantErr: "objects_in_scene must not be negative",
		},
		{
			name:    "overlapping banks",
			yaml:    "actuators:\n  gravity: 0\n  position: 4\n  velocity: 16\n",
			wantErr: "overlap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSimConfig([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Expected error containing '%s', got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing '%s', got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetJointByName(t *testing.T) {
	config := DefaultSimConfig()

	joint, found := config.GetJointByName("elbow_joint")
	if !found {
		t.Fatalf("Expected to find elbow_joint")
	}
	if joint.StartPose == nil || *joint.StartPose != 0 {
		t.Errorf("Expected default start pose on elbow_joint")
	}

	if _, found := config.GetJointByName("tail_joint"); found {
		t.Errorf("Expected not to find tail_joint")
	}
}

func TestLoadBootstrapConfig(t *testing.T) {
	tempDir := t.TempDir()

	bootstrapContent := `
logging:
  level: "debug"
  log_path: "/var/log/mjbridge"
ros:
  master_address: "127.0.0.1:11311"
  node_name: "joint_state_interpreter"
server:
  http_port: 9090
zeromq:
  publish_bind_address: "tcp://*:7777"
  request_bind_address: "tcp://*:6666"
  status_interval_ms: 1000
processing:
  workers: 2
  queue_size: 500
recorder:
  path: "/data/mjbridge/steps.db"
data:
  directory: "/data/mjbridge"
  sim_config_file: "ur5_sim.yaml"
`
	configPath := filepath.Join(tempDir, BootstrapFileName)
	if err := os.WriteFile(configPath, []byte(bootstrapContent), 0644); err != nil {
		t.Fatalf("Failed to write test bootstrap config: %v", err)
	}

	bootstrapCfg, err := LoadBootstrapConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadBootstrapConfig failed: %v", err)
	}

	if bootstrapCfg.Logging.Level != "debug" {
		t.Errorf("Expected logging level 'debug', got '%s'", bootstrapCfg.Logging.Level)
	}
	if bootstrapCfg.ROS.MasterAddress != "127.0.0.1:11311" {
		t.Errorf("Expected master address '127.0.0.1:11311', got '%s'", bootstrapCfg.ROS.MasterAddress)
	}
	if bootstrapCfg.ROS.Namespace != "/" {
		t.Errorf("Expected default namespace '/', got '%s'", bootstrapCfg.ROS.Namespace)
	}
	if bootstrapCfg.Server.HTTPPort != 9090 {
		t.Errorf("Expected server http_port 9090, got %d", bootstrapCfg.Server.HTTPPort)
	}
	if bootstrapCfg.ZeroMQ.PublishBindAddress != "tcp://*:7777" {
		t.Errorf("Expected zeromq publish_bind_address 'tcp://*:7777', got '%s'", bootstrapCfg.ZeroMQ.PublishBindAddress)
	}
	if bootstrapCfg.ZeroMQ.RequestBindAddress != "tcp://*:6666" {
		t.Errorf("Expected zeromq request_bind_address 'tcp://*:6666', got '%s'", bootstrapCfg.ZeroMQ.RequestBindAddress)
	}
	if bootstrapCfg.ZeroMQ.StatusIntervalMs != 1000 {
		t.Errorf("Expected zeromq status_interval_ms 1000, got %d", bootstrapCfg.ZeroMQ.StatusIntervalMs)
	}
	if bootstrapCfg.Processing.Workers != 2 || bootstrapCfg.Processing.QueueSize != 500 {
		t.Errorf("Unexpected processing config %+v", bootstrapCfg.Processing)
	}
	if bootstrapCfg.Recorder.Path != "/data/mjbridge/steps.db" {
		t.Errorf("Expected recorder path, got '%s'", bootstrapCfg.Recorder.Path)
	}
	if bootstrapCfg.SimConfigPath() != filepath.Join("/data/mjbridge", "ur5_sim.yaml") {
		t.Errorf("Unexpected sim config path '%s'", bootstrapCfg.SimConfigPath())
	}
}

// Test case for missing required fields validation in LoadBootstrapConfig
func TestLoadBootstrapConfigMissingRequired(t *testing.T) {
	tempDir := t.TempDir()

	bootstrapContentMissing := `
logging:
  level: "info"
ros:
  # master_address: "127.0.0.1:11311" # Missing
  node_name: "joint_state_interpreter"
data:
  directory: "/data"
  sim_config_file: "sim.yaml"
`
	configPath := filepath.Join(tempDir, BootstrapFileName)
	if err := os.WriteFile(configPath, []byte(bootstrapContentMissing), 0644); err != nil {
		t.Fatalf("Failed to write test bootstrap config: %v", err)
	}

	_, err := LoadBootstrapConfig(tempDir)
	if err == nil {
		t.Fatalf("Expected error when loading bootstrap config with missing required fields, but got nil")
	}

	expectedErrorSubstr := "missing required field in bootstrap config: ros.master_address"
	if !strings.Contains(err.Error(), expectedErrorSubstr) {
		t.Errorf("Expected error message to contain '%s', but got: %v", expectedErrorSubstr, err)
	}
}

func TestLoadBootstrapConfigDefaults(t *testing.T) {
	tempDir := t.TempDir()
	content := `
ros:
  master_address: "localhost:11311"
  node_name: "jsi"
data:
  directory: "."
  sim_config_file: "sim.yaml"
`
	if err := os.WriteFile(filepath.Join(tempDir, BootstrapFileName), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test bootstrap config: %v", err)
	}

	cfg, err := LoadBootstrapConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadBootstrapConfig failed: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default level info, got %s", cfg.Logging.Level)
	}
	if cfg.Processing.Workers != 1 || cfg.Processing.QueueSize != 100 {
		t.Errorf("Expected default processing 1/100, got %+v", cfg.Processing)
	}
	if cfg.Server.HTTPPort != 0 || cfg.ZeroMQ.PublishBindAddress != "" || cfg.Recorder.Path != "" {
		t.Errorf("Expected optional services disabled, got %+v", cfg)
	}
}

// The shipped sample files must stay loadable and match the built-in defaults.
func TestShippedConfigFiles(t *testing.T) {
	bootstrapCfg, err := LoadBootstrapConfig(filepath.Join("..", "..", "config"))
	if err != nil {
		t.Fatalf("LoadBootstrapConfig on shipped config failed: %v", err)
	}
	if bootstrapCfg.Data.SimConfigFilename != "sim_config.yaml" {
		t.Errorf("Unexpected sim config file name '%s'", bootstrapCfg.Data.SimConfigFilename)
	}

	simCfg, err := LoadSimConfig(filepath.Join("..", "..", "config", bootstrapCfg.Data.SimConfigFilename))
	if err != nil {
		t.Fatalf("LoadSimConfig on shipped config failed: %v", err)
	}
	defaults := DefaultSimConfig()
	if !reflect.DeepEqual(simCfg.JointNames(), defaults.JointNames()) {
		t.Errorf("Shipped joints %v differ from defaults", simCfg.JointNames())
	}
	if !reflect.DeepEqual(simCfg.Actuators, defaults.Actuators) || simCfg.Topics != defaults.Topics || simCfg.Marker != defaults.Marker {
		t.Errorf("Shipped sim config differs from defaults: %+v", simCfg)
	}
	if simCfg.Objects() != 1 {
		t.Errorf("Expected 1 object, got %d", simCfg.Objects())
	}
}

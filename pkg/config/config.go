package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultJointNames are the UR arm and two-finger gripper joints the bridge
// relays when the sim config does not list its own.
var DefaultJointNames = []string{
	"shoulder_pan_joint",
	"shoulder_lift_joint",
	"elbow_joint",
	"wrist_1_joint",
	"wrist_2_joint",
	"wrist_3_joint",
	"gripper_base_left_finger_joint",
	"gripper_base_right_finger_joint",
}

// SimConfig is the operational configuration of the simulated scene.
type SimConfig struct {
	Version        string        `yaml:"version" json:"version"`
	ConfigID       string        `yaml:"config_id" json:"config_id"`
	RobotID        string        `yaml:"robot_id" json:"robot_id"`
	ObjectsInScene *int          `yaml:"objects_in_scene" json:"objects_in_scene"`
	Joints         []JointConfig `yaml:"joints" json:"joints"`
	Actuators      ActuatorBanks `yaml:"actuators" json:"actuators"`
	Topics         TopicsConfig  `yaml:"topics" json:"topics"`
	Marker         MarkerConfig  `yaml:"marker" json:"marker"`
	Defaults       JointDefaults `yaml:"defaults" json:"defaults"`
}

// JointConfig describes one relayed robot joint.
type JointConfig struct {
	Name             string   `yaml:"name" json:"name"`
	StartPose        *float64 `yaml:"start_pose,omitempty" json:"start_pose,omitempty"`
	VelocitySetPoint *float64 `yaml:"velocity_set_point,omitempty" json:"velocity_set_point,omitempty"`
}

// JointDefaults fill StartPose and VelocitySetPoint where a joint omits them.
type JointDefaults struct {
	StartPose        float64 `yaml:"start_pose" json:"start_pose"`
	VelocitySetPoint float64 `yaml:"velocity_set_point" json:"velocity_set_point"`
}

// ActuatorBanks are the offsets into the control vector of the three
// actuator groups: motors fed with gravity compensation, position servos
// fed with the commanded positions and velocity servos fed with set points.
// A nil offset is unset; zero is a valid offset.
type ActuatorBanks struct {
	Gravity  *int `yaml:"gravity" json:"gravity"`
	Position *int `yaml:"position" json:"position"`
	Velocity *int `yaml:"velocity" json:"velocity"`
}

// Offsets returns the three bank offsets, reading unset ones as 0.
func (b ActuatorBanks) Offsets() (gravity, position, velocity int) {
	return intOr(b.Gravity, 0), intOr(b.Position, 0), intOr(b.Velocity, 0)
}

// Banks builds an ActuatorBanks from explicit offsets.
func Banks(gravity, position, velocity int) ActuatorBanks {
	return ActuatorBanks{Gravity: &gravity, Position: &position, Velocity: &velocity}
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

// TopicsConfig names the topics the node subscribes and advertises.
// Names without a leading slash live in the node's private namespace.
type TopicsConfig struct {
	JointStatesIn  string `yaml:"joint_states_in" json:"joint_states_in"`
	JointStatesOut string `yaml:"joint_states_out" json:"joint_states_out"`
	JointStates    string `yaml:"joint_states" json:"joint_states"`
	Marker         string `yaml:"marker" json:"marker"`
}

// MarkerConfig sets the header and namespace of free object markers.
type MarkerConfig struct {
	FrameID   string `yaml:"frame_id" json:"frame_id"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// DefaultSimConfig returns the stock 8 joint, 1 free object scene.
func DefaultSimConfig() *SimConfig {
	cfg := &SimConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// LoadSimConfig loads the sim configuration from the specified file path
// and fills in defaults.
func LoadSimConfig(path string) (*SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading sim config file: %w", err)
	}
	return ParseSimConfig(data)
}

// ParseSimConfig decodes YAML, applies defaults and validates.
func ParseSimConfig(data []byte) (*SimConfig, error) {
	var cfg SimConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing sim config file: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every empty field with the stock value.
func (c *SimConfig) ApplyDefaults() {
	if c.ObjectsInScene == nil {
		one := 1
		c.ObjectsInScene = &one
	}

	if len(c.Joints) == 0 {
		c.Joints = make([]JointConfig, len(DefaultJointNames))
		for i, name := range DefaultJointNames {
			c.Joints[i] = JointConfig{Name: name}
		}
	}
	for i := range c.Joints {
		c.Joints[i] = applyJointDefaults(c.Joints[i], c.Defaults)
	}

	n := len(c.Joints)
	gravity := intOr(c.Actuators.Gravity, 0)
	position := intOr(c.Actuators.Position, gravity+n)
	velocity := intOr(c.Actuators.Velocity, position+n)
	c.Actuators = Banks(gravity, position, velocity)

	if c.Topics.JointStatesIn == "" {
		c.Topics.JointStatesIn = "joint_states_in"
	}
	if c.Topics.JointStatesOut == "" {
		c.Topics.JointStatesOut = "joint_states_out"
	}
	if c.Topics.JointStates == "" {
		c.Topics.JointStates = "/joint_states"
	}
	if c.Topics.Marker == "" {
		c.Topics.Marker = "/visualization_marker"
	}

	if c.Marker.FrameID == "" {
		c.Marker.FrameID = "/world"
	}
	if c.Marker.Namespace == "" {
		c.Marker.Namespace = "free_objects"
	}
}

// Validate checks joint names and that the actuator banks do not overlap.
func (c *SimConfig) Validate() error {
	if c.ObjectsInScene != nil && *c.ObjectsInScene < 0 {
		return fmt.Errorf("validation failed: objects_in_scene must not be negative, got %d", *c.ObjectsInScene)
	}

	seen := make(map[string]bool, len(c.Joints))
	for i, j := range c.Joints {
		if j.Name == "" {
			return fmt.Errorf("validation failed: joint %d has no name", i)
		}
		if seen[j.Name] {
			return fmt.Errorf("validation failed: duplicate joint name '%s'", j.Name)
		}
		seen[j.Name] = true
	}

	n := len(c.Joints)
	gravity, position, velocity := c.Actuators.Offsets()
	if gravity < 0 || position < 0 || velocity < 0 {
		return fmt.Errorf("validation failed: actuator bank offsets must not be negative")
	}
	if overlaps(gravity, position, n) ||
		overlaps(gravity, velocity, n) ||
		overlaps(position, velocity, n) {
		return fmt.Errorf("validation failed: actuator banks gravity=%d position=%d velocity=%d overlap for %d joints",
			gravity, position, velocity, n)
	}
	return nil
}

// Objects returns the number of free objects in the scene.
func (c *SimConfig) Objects() int {
	if c.ObjectsInScene == nil {
		return 1
	}
	return *c.ObjectsInScene
}

// JointNames returns the relayed joint names in order.
func (c *SimConfig) JointNames() []string {
	names := make([]string, len(c.Joints))
	for i, j := range c.Joints {
		names[i] = j.Name
	}
	return names
}

// StartPose returns the initial commanded position of every joint.
func (c *SimConfig) StartPose() []float64 {
	pose := make([]float64, len(c.Joints))
	for i, j := range c.Joints {
		if j.StartPose != nil {
			pose[i] = *j.StartPose
		}
	}
	return pose
}

// VelocitySetPoints returns the velocity actuator set point of every joint.
func (c *SimConfig) VelocitySetPoints() []float64 {
	vel := make([]float64, len(c.Joints))
	for i, j := range c.Joints {
		if j.VelocitySetPoint != nil {
			vel[i] = *j.VelocitySetPoint
		}
	}
	return vel
}

// GetJointByName returns the joint config for a joint name
func (c *SimConfig) GetJointByName(name string) (JointConfig, bool) {
	for _, j := range c.Joints {
		if j.Name == name {
			return j, true
		}
	}
	return JointConfig{}, false
}

// applyJointDefaults merges default values into a joint where fields are empty
func applyJointDefaults(joint JointConfig, defaults JointDefaults) JointConfig {
	result := joint
	if result.StartPose == nil {
		v := defaults.StartPose
		result.StartPose = &v
	}
	if result.VelocitySetPoint == nil {
		v := defaults.VelocitySetPoint
		result.VelocitySetPoint = &v
	}
	return result
}

func overlaps(a, b, n int) bool {
	return a < b+n && b < a+n
}

// Package ros connects the bridge to a ROS1 graph.
package ros

import (
	"fmt"
	"sync"
	"time"

	"github.com/bluenviron/goroslib/v2"
	"github.com/bluenviron/goroslib/v2/pkg/msgs/sensor_msgs"
	"github.com/bluenviron/goroslib/v2/pkg/msgs/visualization_msgs"

	"github.com/open-teleop/mujoco-bridge/pkg/bridge"
	"github.com/open-teleop/mujoco-bridge/pkg/config"
	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
)

// Private parameters the node requires.
const (
	ParamLicenseFile = "license_file"
	ParamModelFile   = "model_file"
)

// MissingParamError reports a required parameter absent from the server.
type MissingParamError struct {
	Name string
	Err  error
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("Did not find parameter '%s'.", e.Name)
}

func (e *MissingParamError) Unwrap() error { return e.Err }

// ParamGetter reads string parameters by global name.
type ParamGetter interface {
	ParamGetString(key string) (string, error)
}

// RequiredParams reads every name from the node's private namespace. The
// first missing parameter aborts with a MissingParamError.
func RequiredParams(getter ParamGetter, namespace, node string, names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	for _, name := range names {
		v, err := getter.ParamGetString(ResolveName(namespace, node, name))
		if err != nil {
			return nil, &MissingParamError{Name: name, Err: err}
		}
		values[name] = v
	}
	return values, nil
}

// TopicStats is told about every message crossing a topic.
type TopicStats interface {
	UpdateTopicStats(topic string, timestamp int64)
}

// Node wraps a goroslib node registered with the master.
type Node struct {
	node   *goroslib.Node
	conf   config.ROSConfig
	logger customlog.Logger
}

// NewNode registers a node with the ROS master.
func NewNode(conf config.ROSConfig, logger customlog.Logger) (*Node, error) {
	n, err := goroslib.NewNode(goroslib.NodeConf{
		Namespace:     conf.Namespace,
		Name:          conf.NodeName,
		MasterAddress: conf.MasterAddress,
		Host:          conf.Host,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register node '%s' with master %s: %w", conf.NodeName, conf.MasterAddress, err)
	}
	logger.Infof("Registered node %s with master %s", NodePath(conf.Namespace, conf.NodeName), conf.MasterAddress)
	return &Node{node: n, conf: conf, logger: logger}, nil
}

// Params reads the license and model file parameters.
func (n *Node) Params() (licenseFile, modelFile string, err error) {
	values, err := RequiredParams(n.node, n.conf.Namespace, n.conf.NodeName, ParamLicenseFile, ParamModelFile)
	if err != nil {
		return "", "", err
	}
	return values[ParamLicenseFile], values[ParamModelFile], nil
}

// Resolve returns the global name of a private or global topic.
func (n *Node) Resolve(name string) string {
	return ResolveName(n.conf.Namespace, n.conf.NodeName, name)
}

// Close unregisters the node.
func (n *Node) Close() {
	n.node.Close()
}

// Relay owns the command subscription and the three output publishers. It
// implements bridge.Sink.
type Relay struct {
	node   *Node
	logger customlog.Logger
	stats  TopicStats
	topics config.TopicsConfig

	sub       *goroslib.Subscriber
	echoPub   *goroslib.Publisher
	statePub  *goroslib.Publisher
	markerPub *goroslib.Publisher

	mu        sync.Mutex
	stateSeq  uint32
	markerSeq uint32
}

var _ bridge.Sink = (*Relay)(nil)

// CommandHandler processes one incoming command.
type CommandHandler func(cmd *bridge.JointState)

// NewRelay advertises the outputs. Topic names in topics are resolved
// against the node's private namespace; the resolved names are kept so
// callers can report them. Commands flow only after Subscribe.
func NewRelay(n *Node, topics config.TopicsConfig, stats TopicStats) (*Relay, error) {
	r := &Relay{
		node:   n,
		logger: n.logger,
		stats:  stats,
		topics: config.TopicsConfig{
			JointStatesIn:  n.Resolve(topics.JointStatesIn),
			JointStatesOut: n.Resolve(topics.JointStatesOut),
			JointStates:    n.Resolve(topics.JointStates),
			Marker:         n.Resolve(topics.Marker),
		},
	}

	var err error
	r.echoPub, err = goroslib.NewPublisher(goroslib.PublisherConf{
		Node:  n.node,
		Topic: r.topics.JointStatesOut,
		Msg:   &sensor_msgs.JointState{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to advertise %s: %w", r.topics.JointStatesOut, err)
	}

	r.statePub, err = goroslib.NewPublisher(goroslib.PublisherConf{
		Node:  n.node,
		Topic: r.topics.JointStates,
		Msg:   &sensor_msgs.JointState{},
	})
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to advertise %s: %w", r.topics.JointStates, err)
	}

	r.markerPub, err = goroslib.NewPublisher(goroslib.PublisherConf{
		Node:  n.node,
		Topic: r.topics.Marker,
		Msg:   &visualization_msgs.Marker{},
	})
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to advertise %s: %w", r.topics.Marker, err)
	}

	r.logger.Infof("Publishing %s, %s and %s", r.topics.JointStatesOut, r.topics.JointStates, r.topics.Marker)
	return r, nil
}

// CommandQueueSize bounds the commands waiting for the handler. When it is
// full goroslib discards the newly arrived command.
const CommandQueueSize = 1

// Subscribe starts delivering commands to handler, one at a time.
func (r *Relay) Subscribe(handler CommandHandler) error {
	sub, err := goroslib.NewSubscriber(goroslib.SubscriberConf{
		Node:      r.node.node,
		Topic:     r.topics.JointStatesIn,
		QueueSize: CommandQueueSize,
		Callback: func(msg *sensor_msgs.JointState) {
			r.count(r.topics.JointStatesIn)
			handler(JointStateFromMsg(msg))
		},
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", r.topics.JointStatesIn, err)
	}
	r.sub = sub
	r.logger.Infof("Subscribed to %s", r.topics.JointStatesIn)
	return nil
}

// Topics returns the resolved topic names.
func (r *Relay) Topics() config.TopicsConfig { return r.topics }

func (r *Relay) PublishJointState(js *bridge.JointState) error {
	r.mu.Lock()
	r.stateSeq++
	seq := r.stateSeq
	r.mu.Unlock()

	r.statePub.Write(JointStateToMsg(js, seq))
	r.count(r.topics.JointStates)
	return nil
}

func (r *Relay) PublishMarker(m *bridge.Marker) error {
	r.mu.Lock()
	r.markerSeq++
	seq := r.markerSeq
	r.mu.Unlock()

	r.markerPub.Write(MarkerToMsg(m, seq))
	r.count(r.topics.Marker)
	return nil
}

func (r *Relay) PublishEcho(js *bridge.JointState) error {
	r.echoPub.Write(echoMsg(js))
	r.count(r.topics.JointStatesOut)
	return nil
}

func (r *Relay) count(topic string) {
	if r.stats != nil {
		r.stats.UpdateTopicStats(topic, time.Now().UnixNano())
	}
}

// Close stops the subscription first so no callback publishes on a closed
// publisher.
func (r *Relay) Close() {
	if r.sub != nil {
		r.sub.Close()
	}
	for _, p := range []*goroslib.Publisher{r.echoPub, r.statePub, r.markerPub} {
		if p != nil {
			p.Close()
		}
	}
}

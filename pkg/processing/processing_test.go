package processing

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"

	"github.com/open-teleop/mujoco-bridge/pkg/bridge"
	"github.com/open-teleop/mujoco-bridge/pkg/config"
	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
)

func step(call int) *bridge.StepResult {
	return &bridge.StepResult{
		Call:    call,
		SimTime: float64(call) * 0.002,
		Stamp:   time.Unix(100, int64(call)),
		State: &bridge.JointState{
			Name:     []string{"elbow_joint"},
			Position: []float64{0.5},
			Velocity: []float64{0.1},
		},
		Command:       &bridge.JointState{Position: []float64{0.6}},
		GravityTorque: []float64{1.5},
		Markers: []bridge.Marker{{
			ID:          1,
			Position:    r3.Vector{X: 1, Y: 2, Z: 3},
			Orientation: quat.Number{Real: 1},
		}},
	}
}

type collector struct {
	mu    sync.Mutex
	calls []int
}

func (c *collector) process(s *bridge.StepResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, s.Call)
	return nil
}

func (c *collector) seen() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.calls...)
}

func TestPoolRunsProcessorsInOrder(t *testing.T) {
	pool := NewProcessingPool("TEST", 1, 10, customlog.Discard())

	var mu sync.Mutex
	var order []string
	record := func(name string) StepProcessor {
		return func(*bridge.StepResult) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	pool.AddProcessor("first", record("first"))
	pool.AddProcessor("second", record("second"))

	pool.Start()
	require.True(t, pool.ProcessStep(step(1)))
	pool.Stop()

	assert.Equal(t, []string{"first", "second"}, order)
	m := pool.GetMetrics()
	assert.Equal(t, int64(2), m.ProcessedCount)
	assert.Equal(t, int64(1), m.QueuedCount)
}

func TestPoolDropsWhenFull(t *testing.T) {
	pool := NewProcessingPool("TEST", 1, 1, customlog.Discard())
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	pool.AddProcessor("slow", func(*bridge.StepResult) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	pool.Start()
	require.True(t, pool.ProcessStep(step(1)))
	<-started
	require.True(t, pool.ProcessStep(step(2)))
	assert.False(t, pool.ProcessStep(step(3)))
	close(release)
	pool.Stop()

	m := pool.GetMetrics()
	assert.Equal(t, int64(1), m.DroppedCount)
	assert.Equal(t, int64(2), m.ProcessedCount)
}

func TestPoolRejectsWhenStopped(t *testing.T) {
	pool := NewProcessingPool("TEST", 2, 4, customlog.Discard())
	assert.False(t, pool.ProcessStep(step(1)))
	pool.Start()
	pool.Stop()
	assert.False(t, pool.ProcessStep(step(2)))
	pool.Stop()
}

func TestResultHandlerRecordsErrors(t *testing.T) {
	handler := NewLoggingResultHandler(customlog.Discard())
	pool := NewProcessingPool("TEST", 1, 4, customlog.Discard())
	pool.SetResultHandler(handler.CreateHandlerFunc())
	pool.AddProcessor("recorder", func(*bridge.StepResult) error {
		return errors.New("disk full")
	})

	pool.Start()
	pool.ProcessStep(step(1))
	pool.Stop()

	assert.Equal(t, map[string]string{"recorder": "disk full"}, handler.LastErrors())
	assert.Equal(t, int64(1), pool.GetMetrics().ErrorCount)
}

func TestDirectorFansOutByPriority(t *testing.T) {
	director := NewStepDirector(customlog.Discard(), &DirectorOptions{Workers: 1, QueueSize: 8})

	live, store := &collector{}, &collector{}
	require.NoError(t, director.Register(PriorityHigh, "telemetry", live.process))
	require.NoError(t, director.Register(PriorityLow, "recorder", store.process))
	assert.Error(t, director.Register("URGENT", "x", live.process))

	// not running yet, so this is ignored
	director.ObserveStep(step(0))

	director.Start()
	for i := 1; i <= 3; i++ {
		director.ObserveStep(step(i))
	}
	director.Stop()

	assert.Equal(t, []int{1, 2, 3}, live.seen())
	assert.Equal(t, []int{1, 2, 3}, store.seen())

	metrics := director.GetPoolMetrics()
	require.Contains(t, metrics, PriorityHigh)
	require.Contains(t, metrics, PriorityLow)
	assert.NotContains(t, metrics, PriorityStandard)
	assert.Equal(t, int64(3), metrics[PriorityLow].ProcessedCount)
}

type memPublisher struct {
	topic string
	data  []byte
}

func (p *memPublisher) PublishMessage(topic string, data []byte) error {
	p.topic, p.data = topic, data
	return nil
}

func TestJSONPublishProcessor(t *testing.T) {
	pub := &memPublisher{}
	require.NoError(t, NewJSONPublishProcessor(pub, "state")(step(4)))
	assert.Equal(t, "state", pub.topic)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.data, &decoded))
	assert.Equal(t, float64(4), decoded["call"])
	assert.Equal(t, []interface{}{0.5}, decoded["position"])
	assert.Equal(t, []interface{}{0.6}, decoded["command"])

	objects := decoded["objects"].([]interface{})
	require.Len(t, objects, 1)
	obj := objects[0].(map[string]interface{})
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, obj["position"])
}

func TestTopicRegistry(t *testing.T) {
	reg := NewTopicRegistry(customlog.Discard())
	reg.LoadFromConfig(config.TopicsConfig{
		JointStatesIn:  "/jsi/joint_states_in",
		JointStatesOut: "/jsi/joint_states_out",
		JointStates:    "/joint_states",
		Marker:         "/visualization_marker",
	})

	reg.UpdateTopicStats("/joint_states", 10)
	reg.UpdateTopicStats("/joint_states", 20)
	reg.UpdateTopicStats("/extra", 30)

	info, ok := reg.GetTopicInfo("/joint_states")
	require.True(t, ok)
	assert.Equal(t, int64(2), info.StatCount)
	assert.Equal(t, int64(20), info.LastReceived)
	assert.Equal(t, DirectionOutbound, info.Direction)

	typ, ok := reg.GetMessageType("/visualization_marker")
	require.True(t, ok)
	assert.Equal(t, "visualization_msgs/Marker", typ)

	assert.Equal(t, []string{
		"/extra", "/joint_states", "/jsi/joint_states_in", "/jsi/joint_states_out", "/visualization_marker",
	}, reg.GetAllTopics())
	assert.Len(t, reg.GetTopicStats(), 5)

	_, ok = reg.GetTopicInfo("/missing")
	assert.False(t, ok)
}

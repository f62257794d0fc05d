package processing

import (
	"sort"
	"sync"

	"github.com/open-teleop/mujoco-bridge/pkg/config"
	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
)

// Topic directions
const (
	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"
)

// TopicInfo holds metadata for a topic
type TopicInfo struct {
	Topic        string `json:"topic"`
	MessageType  string `json:"type"`
	Direction    string `json:"direction"`
	StatCount    int64  `json:"count"`
	LastReceived int64  `json:"last_received"`
}

// TopicRegistry maintains information about topics
type TopicRegistry struct {
	logger customlog.Logger
	topics map[string]*TopicInfo
	mu     sync.RWMutex
}

// NewTopicRegistry creates a new topic registry
func NewTopicRegistry(logger customlog.Logger) *TopicRegistry {
	return &TopicRegistry{
		logger: logger,
		topics: make(map[string]*TopicInfo),
	}
}

// LoadFromConfig registers the relay topics. topics should hold resolved
// names so the stats line up with what the relay reports.
func (r *TopicRegistry) LoadFromConfig(topics config.TopicsConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.topics = map[string]*TopicInfo{
		topics.JointStatesIn: {
			Topic:       topics.JointStatesIn,
			MessageType: "sensor_msgs/JointState",
			Direction:   DirectionInbound,
		},
		topics.JointStatesOut: {
			Topic:       topics.JointStatesOut,
			MessageType: "sensor_msgs/JointState",
			Direction:   DirectionOutbound,
		},
		topics.JointStates: {
			Topic:       topics.JointStates,
			MessageType: "sensor_msgs/JointState",
			Direction:   DirectionOutbound,
		},
		topics.Marker: {
			Topic:       topics.Marker,
			MessageType: "visualization_msgs/Marker",
			Direction:   DirectionOutbound,
		},
	}

	r.logger.Infof("Loaded %d topics into registry", len(r.topics))
}

// GetTopicInfo gets information for a topic
func (r *TopicRegistry) GetTopicInfo(topic string) (*TopicInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.topics[topic]
	if !exists {
		return nil, false
	}

	// Return a copy to avoid race conditions
	infoCopy := *info
	return &infoCopy, true
}

// UpdateTopicStats updates statistics for a topic
func (r *TopicRegistry) UpdateTopicStats(topic string, timestamp int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, exists := r.topics[topic]
	if !exists {
		info = &TopicInfo{Topic: topic}
		r.topics[topic] = info
	}

	info.StatCount++
	info.LastReceived = timestamp
}

// GetMessageType gets the message type for a topic
func (r *TopicRegistry) GetMessageType(topic string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.topics[topic]
	if !exists {
		return "", false
	}

	return info.MessageType, true
}

// GetAllTopics returns all registered topics, sorted
func (r *TopicRegistry) GetAllTopics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	return topics
}

// GetTopicStats returns a copy of every topic's info, sorted by name
func (r *TopicRegistry) GetTopicStats() []TopicInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]TopicInfo, 0, len(r.topics))
	for _, info := range r.topics {
		stats = append(stats, *info)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Topic < stats[j].Topic })

	return stats
}

package events

import "time"

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Clustering events. The aggregate is the selection key.

const (
	EventClusteringCompleted = "clustering.completed"
	EventClusteringFailed    = "clustering.failed"
	EventClusteringTimedOut  = "clustering.timed_out"
)

// ClusteringCompleted is raised when a cycle persisted its artifact
type ClusteringCompleted struct {
	BaseEvent
	CycleID            string `json:"cycle_id"`
	NodeCount          int    `json:"node_count"`
	EdgeCount          int    `json:"edge_count"`
	ClusterCount       int    `json:"cluster_count"`
	LargestClusterSize int    `json:"largest_cluster_size"`
	UnassignedCount    int    `json:"unassigned_count"`
	Warnings           int    `json:"warnings"`
}

// NewClusteringCompleted creates a ClusteringCompleted event
func NewClusteringCompleted(selectionKey, cycleID string, timestamp time.Time) ClusteringCompleted {
	return ClusteringCompleted{
		BaseEvent: BaseEvent{
			AggregateID: selectionKey,
			EventType:   EventClusteringCompleted,
			Timestamp:   timestamp,
			Version:     1,
		},
		CycleID: cycleID,
	}
}

// ClusteringFailed is raised when a cycle ended with an error kind
type ClusteringFailed struct {
	BaseEvent
	CycleID   string `json:"cycle_id"`
	ErrorKind string `json:"error_kind"`
	Detail    string `json:"detail"`
	Retryable bool   `json:"retryable"`
}

// NewClusteringFailed creates a ClusteringFailed event
func NewClusteringFailed(selectionKey, cycleID, kind, detail string, retryable bool, timestamp time.Time) ClusteringFailed {
	return ClusteringFailed{
		BaseEvent: BaseEvent{
			AggregateID: selectionKey,
			EventType:   EventClusteringFailed,
			Timestamp:   timestamp,
			Version:     1,
		},
		CycleID:   cycleID,
		ErrorKind: kind,
		Detail:    detail,
		Retryable: retryable,
	}
}

// ClusteringTimedOut is raised when the remote job outlived the polling deadline
type ClusteringTimedOut struct {
	BaseEvent
	CycleID     string `json:"cycle_id"`
	NetworkSUID int64  `json:"network_suid,omitempty"`
	JobID       string `json:"job_id,omitempty"`
}

// NewClusteringTimedOut creates a ClusteringTimedOut event
func NewClusteringTimedOut(selectionKey, cycleID string, networkSUID int64, jobID string, timestamp time.Time) ClusteringTimedOut {
	return ClusteringTimedOut{
		BaseEvent: BaseEvent{
			AggregateID: selectionKey,
			EventType:   EventClusteringTimedOut,
			Timestamp:   timestamp,
			Version:     1,
		},
		CycleID:     cycleID,
		NetworkSUID: networkSUID,
		JobID:       jobID,
	}
}

package admin

import (
	"context"
	"fmt"

	"github.com/hyperjump/rewind/internal/control"
	"github.com/hyperjump/rewind/internal/models"
	"github.com/hyperjump/rewind/internal/queue"
	"github.com/hyperjump/rewind/internal/storage"
	"github.com/hyperjump/rewind/internal/vector"
)

// Status is a point-in-time summary of the system.
type Status struct {
	CaptureState   control.State                `json:"capture_state"`
	Records        int64                        `json:"records"`
	VectorStates   map[models.VectorState]int64 `json:"vector_states"`
	Vectors        int                          `json:"vectors"`
	VectorIndex    string                       `json:"vector_index_type"`
	Queue          map[string]int               `json:"queue"`
	DiskUsageBytes int64                        `json:"disk_usage_bytes"`
}

// StateSource reports the capture control state.
type StateSource interface {
	State() control.State
}

// Inspector gathers Status from the live components.
type Inspector struct {
	state     StateSource
	store     storage.Storage
	vectors   vector.VectorIndex
	queue     *queue.Queue
	diskPaths []string
}

// NewInspector wires an Inspector. diskPaths are summed for disk usage.
func NewInspector(state StateSource, store storage.Storage, vectors vector.VectorIndex, q *queue.Queue, diskPaths ...string) *Inspector {
	return &Inspector{state: state, store: store, vectors: vectors, queue: q, diskPaths: diskPaths}
}

// Status collects the current status.
func (i *Inspector) Status(ctx context.Context) (*Status, error) {
	records, err := i.store.CountRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	states, err := i.store.CountByVectorState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count vector states: %w", err)
	}
	vectors, err := i.vectors.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count vectors: %w", err)
	}
	depth, err := i.queue.Depth()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue depth: %w", err)
	}
	disk, err := storage.DiskUsageBytes(i.diskPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to measure disk usage: %w", err)
	}
	return &Status{
		CaptureState:   i.state.State(),
		Records:        records,
		VectorStates:   states,
		Vectors:        vectors,
		VectorIndex:    i.vectors.Type(),
		Queue:          depth,
		DiskUsageBytes: disk,
	}, nil
}

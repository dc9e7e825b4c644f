// Package storage defines the persistence interface for capture records.
package storage

import (
	"context"

	"github.com/hyperjump/rewind/internal/models"
)

// Storage is the relational store: the source of truth for whether a record exists.
type Storage interface {
	// CreateRecord inserts rec unless a record with the same ID exists.
	// created is false when the insert was a no-op.
	CreateRecord(ctx context.Context, rec *models.Record) (created bool, err error)
	GetRecord(ctx context.Context, id string) (*models.Record, error)
	GetRecords(ctx context.Context, ids []string) (map[string]*models.Record, error)

	// SearchText returns records whose text contains query (case-insensitive), newest first.
	SearchText(ctx context.Context, query string, tr models.TimeRange, limit int) ([]*models.Record, error)
	ListRecent(ctx context.Context, tr models.TimeRange, offset, limit int) ([]*models.Record, error)
	ListIDsByVectorState(ctx context.Context, state models.VectorState) ([]string, error)

	SetVectorState(ctx context.Context, id string, state models.VectorState, attempts int) error

	CountRecords(ctx context.Context) (int64, error)
	CountByVectorState(ctx context.Context) (map[models.VectorState]int64, error)

	// Wipe deletes every record.
	Wipe(ctx context.Context) error

	Close() error
}

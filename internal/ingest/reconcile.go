package ingest

import (
	"context"
	"fmt"

	"github.com/hyperjump/rewind/internal/models"
)

// ReconcileReport counts the repairs made by Reconcile.
type ReconcileReport struct {
	OrphanVectors   int `json:"orphan_vectors"`
	MissingVectors  int `json:"missing_vectors"`
	StrandedPending int `json:"stranded_pending"`
}

// Empty reports whether nothing needed repair.
func (r ReconcileReport) Empty() bool {
	return r.OrphanVectors == 0 && r.MissingVectors == 0 && r.StrandedPending == 0
}

// Reconcile brings the vector store and the record vector states back in line after a crash:
// vectors without a record are removed, present records without a vector become absent, and
// pending records that no longer have a queue item are settled from the vector store.
func (p *Pipeline) Reconcile(ctx context.Context) (ReconcileReport, error) {
	p.gate.Lock()
	defer p.gate.Unlock()

	var report ReconcileReport
	vecIDs, err := p.vectors.IDs(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list vectors: %w", err)
	}
	records, err := p.store.GetRecords(ctx, vecIDs)
	if err != nil {
		return report, fmt.Errorf("failed to load records: %w", err)
	}
	hasVector := make(map[string]bool, len(vecIDs))
	var orphans []string
	for _, id := range vecIDs {
		if _, ok := records[id]; !ok {
			orphans = append(orphans, id)
			continue
		}
		hasVector[id] = true
	}
	if len(orphans) > 0 {
		if err := p.vectors.Remove(ctx, orphans); err != nil {
			return report, fmt.Errorf("failed to remove orphan vectors: %w", err)
		}
		report.OrphanVectors = len(orphans)
	}

	present, err := p.store.ListIDsByVectorState(ctx, models.VectorPresent)
	if err != nil {
		return report, err
	}
	var missing []string
	for _, id := range present {
		if !hasVector[id] {
			missing = append(missing, id)
		}
	}
	if err := p.settle(ctx, missing, models.VectorAbsent); err != nil {
		return report, err
	}
	report.MissingVectors = len(missing)

	pending, err := p.store.ListIDsByVectorState(ctx, models.VectorPending)
	if err != nil {
		return report, err
	}
	var toPresent, toAbsent []string
	for _, id := range pending {
		if p.queue.Has(id) {
			continue
		}
		if hasVector[id] {
			toPresent = append(toPresent, id)
		} else {
			toAbsent = append(toAbsent, id)
		}
	}
	if err := p.settle(ctx, toPresent, models.VectorPresent); err != nil {
		return report, err
	}
	if err := p.settle(ctx, toAbsent, models.VectorAbsent); err != nil {
		return report, err
	}
	report.StrandedPending = len(toPresent) + len(toAbsent)
	return report, nil
}

func (p *Pipeline) settle(ctx context.Context, ids []string, state models.VectorState) error {
	if len(ids) == 0 {
		return nil
	}
	records, err := p.store.GetRecords(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	for _, id := range ids {
		attempts := 0
		if rec, ok := records[id]; ok {
			attempts = rec.EmbedAttempts
		}
		if err := p.store.SetVectorState(ctx, id, state, attempts); err != nil {
			return fmt.Errorf("failed to set vector state for %s: %w", id, err)
		}
	}
	return nil
}

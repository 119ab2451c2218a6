// Package archive exports point-in-time snapshots of all status records,
// including their audit history, to a blob store.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"statuscore/internal/infra/blob/core"
	"statuscore/pkg/domain"
)

const keyPrefix = "snapshots/"

// Snapshot is one archived copy of the full record set.
type Snapshot struct {
	TakenAt time.Time             `json:"taken_at"`
	Records []domain.StatusRecord `json:"records"`
}

// Source supplies the records to archive. The status engine's Export
// operation satisfies it.
type Source interface {
	Export(ctx context.Context) ([]domain.StatusRecord, error)
}

// Exporter writes snapshots under timestamped keys and reads them back.
type Exporter struct {
	source Source
	blobs  core.Store
	now    func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock replaces the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExporter constructs an exporter over the given source and blob store.
func NewExporter(source Source, blobs core.Store, opts ...Option) *Exporter {
	e := &Exporter{
		source: source,
		blobs:  blobs,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export takes a snapshot and writes it as one JSON blob. The key carries the
// snapshot timestamp, so repeated exports within the same second collide with
// the blob store's create-only semantics rather than overwriting.
func (e *Exporter) Export(ctx context.Context) (core.Info, error) {
	records, err := e.source.Export(ctx)
	if err != nil {
		return core.Info{}, fmt.Errorf("collect records: %w", err)
	}
	takenAt := e.now().UTC()
	snap := Snapshot{TakenAt: takenAt, Records: records}
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return core.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}

	key := keyPrefix + takenAt.Format("20060102T150405Z") + ".json"
	info, err := e.blobs.Put(ctx, key, bytes.NewReader(payload), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"records": strconv.Itoa(len(records))},
	})
	if err != nil {
		return core.Info{}, fmt.Errorf("write snapshot %s: %w", key, err)
	}
	return info, nil
}

// List returns the stored snapshots, ordered by key (and therefore by time).
func (e *Exporter) List(ctx context.Context) ([]core.Info, error) {
	return e.blobs.List(ctx, keyPrefix)
}

// Read loads one snapshot by key.
func (e *Exporter) Read(ctx context.Context, key string) (Snapshot, error) {
	_, rc, err := e.blobs.Get(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = rc.Close() }()

	var snap Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return snap, nil
}

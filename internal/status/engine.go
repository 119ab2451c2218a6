// Package status implements the status tracking engine: entity lifecycle,
// secondary-index maintenance, append-only audit history, and search over a
// pluggable record storage collaborator.
package status

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"statuscore/internal/history"
	"statuscore/internal/tracking"
	"statuscore/pkg/domain"
)

// RetryPolicy bounds how the engine retries transient storage failures.
// Delay doubles per attempt with up to 50% random jitter.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	Sleep     func(time.Duration)
}

// DefaultRetryPolicy is applied when no policy is supplied.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:  3,
	BaseDelay: 25 * time.Millisecond,
	Sleep:     time.Sleep,
}

// Store owns the lifecycle of status records: creation with unique tracking
// and source identifiers, optimistic-concurrency updates with exactly one
// audit entry per change, and the indexed read paths.
type Store struct {
	records  domain.RecordStore
	tracking *tracking.Generator
	history  *history.Recorder
	now      func() time.Time
	newID    func() string
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	retry    RetryPolicy
}

// Option customizes a Store.
type Option func(*storeConfig)

type storeConfig struct {
	now     func() time.Time
	entropy io.Reader
	newID   func() string
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	retry   RetryPolicy
}

// WithClock injects the time source used for provenance timestamps, history
// entries, and tracking-ID date suffixes.
func WithClock(now func() time.Time) Option {
	return func(c *storeConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithEntropy injects the random source used for tracking-ID generation.
func WithEntropy(r io.Reader) Option {
	return func(c *storeConfig) {
		if r != nil {
			c.entropy = r
		}
	}
}

// WithIDFunc injects the generator for status and history identifiers.
func WithIDFunc(newID func() string) Option {
	return func(c *storeConfig) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger Logger) Option {
	return func(c *storeConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics attaches a metrics recorder observing every engine operation.
func WithMetrics(rec MetricsRecorder) Option {
	return func(c *storeConfig) {
		if rec != nil {
			c.metrics = rec
		}
	}
}

// WithTracer attaches a tracer opening one span per engine operation.
func WithTracer(tracer Tracer) Option {
	return func(c *storeConfig) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithRetry overrides the transient-failure retry policy.
func WithRetry(policy RetryPolicy) Option {
	return func(c *storeConfig) {
		if policy.Attempts > 0 {
			c.retry = policy
		}
	}
}

// New constructs a Store over the supplied storage collaborator.
func New(records domain.RecordStore, opts ...Option) *Store {
	cfg := storeConfig{
		now:    func() time.Time { return time.Now().UTC() },
		logger: noopLogger{},
		retry:  DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.retry.Sleep == nil {
		cfg.retry.Sleep = time.Sleep
	}

	trackingOpts := []tracking.Option{tracking.WithClock(cfg.now)}
	if cfg.entropy != nil {
		trackingOpts = append(trackingOpts, tracking.WithEntropy(cfg.entropy))
	}
	historyOpts := []history.Option{history.WithClock(cfg.now)}
	if cfg.newID != nil {
		historyOpts = append(historyOpts, history.WithIDFunc(cfg.newID))
	}

	store := &Store{
		records:  records,
		tracking: tracking.New(trackingOpts...),
		history:  history.New(historyOpts...),
		now:      cfg.now,
		newID:    cfg.newID,
		logger:   cfg.logger,
		metrics:  cfg.metrics,
		tracer:   cfg.tracer,
		retry:    cfg.retry,
	}
	if store.newID == nil {
		store.newID = uuid.NewString
	}
	return store
}

// UpdateRequest carries one sparse update. ExpectedVersion 0 means "no
// precondition": the engine refetches and retries on concurrent races instead
// of surfacing a conflict.
type UpdateRequest struct {
	Patch             domain.StatusPatch
	UpdatedBy         string
	ExpectedVersion   int64
	ChangeReason      string
	ChangeDescription string
}

// Create validates and persists a new status. Explicit tracking or source IDs
// that are already claimed fail with a duplicate-key error; an omitted
// tracking ID is generated and collision-checked until a free one is claimed.
// The returned status carries version 1.
func (s *Store) Create(ctx context.Context, in domain.Status, createdBy string) (domain.Status, error) {
	ctx, done := s.observe(ctx, "create_status")
	st, err := s.create(ctx, in, createdBy)
	done(err)
	return st, err
}

func (s *Store) create(ctx context.Context, in domain.Status, createdBy string) (domain.Status, error) {
	if strings.TrimSpace(in.ClientID) == "" {
		return domain.Status{}, domain.ValidationError{Field: "client_id", Reason: "required"}
	}
	if in.CurrentStage == "" {
		return domain.Status{}, domain.ValidationError{Field: "current_stage", Reason: "required"}
	}

	st := domain.CloneStatus(in)
	st.StatusID = s.newID()
	st.Normalize()

	now := s.now().UTC()
	st.CreatedDate = now
	st.LastUpdatedDate = now
	st.CreatedBy = createdBy
	st.LastUpdatedBy = createdBy
	st.Version = 1

	// Index entries are claimed ahead of the record commit; reads through an
	// index reconcile against the fetched record, so a claim without a record
	// behaves as absent.
	if st.TrackingID != "" {
		if err := s.claimIndex(ctx, domain.IndexTrackingID, st.TrackingID, st.StatusID); err != nil {
			return domain.Status{}, err
		}
	} else {
		for {
			candidate := s.tracking.Generate()
			err := s.claimIndex(ctx, domain.IndexTrackingID, candidate, st.StatusID)
			if domain.IsDuplicateKey(err) {
				s.logger.Debug("tracking id collision, regenerating", "tracking_id", candidate)
				continue
			}
			if err != nil {
				return domain.Status{}, err
			}
			st.TrackingID = candidate
			break
		}
	}

	if st.SourceID != "" {
		if err := s.claimIndex(ctx, domain.IndexSourceID, st.SourceID, st.StatusID); err != nil {
			s.releaseIndex(ctx, domain.IndexTrackingID, st.TrackingID)
			return domain.Status{}, err
		}
	}

	payload, err := domain.EncodeRecord(domain.StatusRecord{Status: st})
	if err != nil {
		return domain.Status{}, fmt.Errorf("encode status record: %w", err)
	}
	err = s.withRetry(ctx, "put_record", func() error {
		return s.records.PutRecord(ctx, st.StatusID, st.ClientID, payload, 0)
	})
	if err != nil {
		s.releaseIndex(ctx, domain.IndexTrackingID, st.TrackingID)
		if st.SourceID != "" {
			s.releaseIndex(ctx, domain.IndexSourceID, st.SourceID)
		}
		return domain.Status{}, err
	}

	s.logger.Info("status created",
		"status_id", st.StatusID, "tracking_id", st.TrackingID, "client_id", st.ClientID)
	return domain.CloneStatus(st), nil
}

// GetByID fetches a status by its primary identifier.
func (s *Store) GetByID(ctx context.Context, statusID string) (domain.Status, error) {
	ctx, done := s.observe(ctx, "get_status")
	rec, err := s.fetchRecord(ctx, statusID)
	done(err)
	if err != nil {
		return domain.Status{}, err
	}
	return domain.CloneStatus(rec.Status), nil
}

// GetByTrackingID resolves a tracking ID through the secondary index.
func (s *Store) GetByTrackingID(ctx context.Context, trackingID string) (domain.Status, error) {
	ctx, done := s.observe(ctx, "get_status_by_tracking_id")
	st, err := s.getByIndex(ctx, domain.IndexTrackingID, trackingID)
	done(err)
	return st, err
}

// GetBySourceID resolves an external source ID through the secondary index.
func (s *Store) GetBySourceID(ctx context.Context, sourceID string) (domain.Status, error) {
	ctx, done := s.observe(ctx, "get_status_by_source_id")
	st, err := s.getByIndex(ctx, domain.IndexSourceID, sourceID)
	done(err)
	return st, err
}

func (s *Store) getByIndex(ctx context.Context, index, key string) (domain.Status, error) {
	var target string
	err := s.withRetry(ctx, "get_index_entry", func() error {
		var inner error
		target, inner = s.records.GetIndexEntry(ctx, index, key)
		return inner
	})
	if err != nil {
		return domain.Status{}, err
	}
	rec, err := s.fetchRecord(ctx, target)
	if domain.IsNotFound(err) {
		// Advisory index entry without a committed record.
		return domain.Status{}, domain.NotFoundError{Kind: index, Key: key}
	}
	if err != nil {
		return domain.Status{}, err
	}
	if !indexMatchesRecord(index, key, rec.Status) {
		return domain.Status{}, domain.NotFoundError{Kind: index, Key: key}
	}
	return domain.CloneStatus(rec.Status), nil
}

func indexMatchesRecord(index, key string, st domain.Status) bool {
	switch index {
	case domain.IndexTrackingID:
		return st.TrackingID == key
	case domain.IndexSourceID:
		return st.SourceID == key
	default:
		return false
	}
}

// ListByClient returns every status owned by the client, ordered by creation
// date ascending with the status ID as a stable tiebreak. An unknown client
// yields an empty slice.
func (s *Store) ListByClient(ctx context.Context, clientID string) ([]domain.Status, error) {
	ctx, done := s.observe(ctx, "list_statuses_by_client")
	out, err := s.listByClient(ctx, clientID)
	done(err)
	return out, err
}

func (s *Store) listByClient(ctx context.Context, clientID string) ([]domain.Status, error) {
	var payloads [][]byte
	err := s.withRetry(ctx, "scan_partition", func() error {
		var inner error
		payloads, inner = s.records.ScanPartition(ctx, clientID)
		return inner
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Status, 0, len(payloads))
	for _, payload := range payloads {
		rec, err := domain.DecodeRecord(payload)
		if err != nil {
			return nil, fmt.Errorf("decode status record: %w", err)
		}
		out = append(out, rec.Status)
	}
	sortByCreatedAsc(out)
	return out, nil
}

// Update applies a sparse patch under optimistic concurrency and appends
// exactly one history entry in the same atomic write as the record mutation.
func (s *Store) Update(ctx context.Context, statusID string, req UpdateRequest) (domain.Status, error) {
	ctx, done := s.observe(ctx, "update_status")
	st, err := s.update(ctx, statusID, req)
	done(err)
	return st, err
}

func (s *Store) update(ctx context.Context, statusID string, req UpdateRequest) (domain.Status, error) {
	if req.Patch.CurrentStage != nil && *req.Patch.CurrentStage == "" {
		return domain.Status{}, domain.ValidationError{Field: "current_stage", Reason: "must be non-empty"}
	}

	for attempt := 0; ; attempt++ {
		rec, err := s.fetchRecord(ctx, statusID)
		if err != nil {
			return domain.Status{}, err
		}
		if req.ExpectedVersion != 0 && req.ExpectedVersion != rec.Status.Version {
			return domain.Status{}, domain.VersionConflictError{
				Key:      statusID,
				Expected: req.ExpectedVersion,
				Actual:   rec.Status.Version,
			}
		}

		prev := rec.Status
		next := domain.CloneStatus(prev)
		req.Patch.Apply(&next)
		next.Normalize()

		now := s.now().UTC()
		if now.Before(next.CreatedDate) {
			now = next.CreatedDate
		}
		next.LastUpdatedDate = now
		next.LastUpdatedBy = req.UpdatedBy
		next.Version = prev.Version + 1

		entry := s.history.Diff(prev, next, req.UpdatedBy, req.ChangeReason, req.ChangeDescription)

		updated := domain.StatusRecord{
			Status:  next,
			History: append(rec.History, entry),
		}
		payload, err := domain.EncodeRecord(updated)
		if err != nil {
			return domain.Status{}, fmt.Errorf("encode status record: %w", err)
		}

		err = s.withRetry(ctx, "put_record", func() error {
			return s.records.PutRecord(ctx, statusID, next.ClientID, payload, prev.Version)
		})
		if domain.IsVersionConflict(err) && req.ExpectedVersion == 0 && attempt < s.retry.Attempts {
			// Lost a race with a concurrent writer; no precondition was
			// requested, so refetch and reapply the patch.
			s.logger.Debug("concurrent update, refetching", "status_id", statusID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return domain.Status{}, err
		}
		s.logger.Info("status updated",
			"status_id", statusID, "version", next.Version, "changed_fields", len(entry.ChangedFields))
		return domain.CloneStatus(next), nil
	}
}

// History returns the append-only audit trail for a status, oldest first.
func (s *Store) History(ctx context.Context, statusID string) ([]domain.StatusHistory, error) {
	ctx, done := s.observe(ctx, "get_status_history")
	rec, err := s.fetchRecord(ctx, statusID)
	done(err)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StatusHistory, 0, len(rec.History))
	for _, entry := range rec.History {
		out = append(out, domain.CloneHistory(entry))
	}
	return out, nil
}

// Export returns a point-in-time copy of every record including history,
// ordered by status ID for reproducible snapshots.
func (s *Store) Export(ctx context.Context) ([]domain.StatusRecord, error) {
	ctx, done := s.observe(ctx, "export_statuses")
	out, err := s.export(ctx)
	done(err)
	return out, err
}

func (s *Store) export(ctx context.Context) ([]domain.StatusRecord, error) {
	records, err := s.scanAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StatusRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, domain.CloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status.StatusID < out[j].Status.StatusID })
	return out, nil
}

func (s *Store) scanAll(ctx context.Context) ([]domain.StatusRecord, error) {
	var payloads [][]byte
	err := s.withRetry(ctx, "scan_all", func() error {
		var inner error
		payloads, inner = s.records.ScanAll(ctx)
		return inner
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.StatusRecord, 0, len(payloads))
	for _, payload := range payloads {
		rec, err := domain.DecodeRecord(payload)
		if err != nil {
			return nil, fmt.Errorf("decode status record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) fetchRecord(ctx context.Context, statusID string) (domain.StatusRecord, error) {
	var payload []byte
	err := s.withRetry(ctx, "get_record", func() error {
		var inner error
		payload, _, inner = s.records.GetRecord(ctx, statusID)
		return inner
	})
	if err != nil {
		return domain.StatusRecord{}, err
	}
	rec, err := domain.DecodeRecord(payload)
	if err != nil {
		return domain.StatusRecord{}, fmt.Errorf("decode status record: %w", err)
	}
	return rec, nil
}

// claimIndex claims index[key] = target. A conflicting claim is honored only
// while a committed record still carries the key; an orphaned claim left by a
// failed create whose cleanup also failed is reconciled away and re-claimed.
func (s *Store) claimIndex(ctx context.Context, index, key, target string) error {
	err := s.putIndexEntry(ctx, index, key, target)
	if !domain.IsDuplicateKey(err) {
		return err
	}

	existing, lookupErr := s.records.GetIndexEntry(ctx, index, key)
	if lookupErr != nil {
		if !domain.IsNotFound(lookupErr) {
			return err
		}
		// The conflicting claim vanished; fall through to re-claim.
	} else {
		rec, recErr := s.fetchRecord(ctx, existing)
		if recErr == nil && indexMatchesRecord(index, key, rec.Status) {
			return err
		}
		if recErr != nil && !domain.IsNotFound(recErr) {
			return recErr
		}
		s.logger.Debug("reclaiming orphaned index entry", "index", index, "key", key)
		s.releaseIndex(ctx, index, key)
	}
	if claimErr := s.putIndexEntry(ctx, index, key, target); claimErr == nil {
		return nil
	}
	return err
}

func (s *Store) putIndexEntry(ctx context.Context, index, key, target string) error {
	return s.withRetry(ctx, "put_index_entry", func() error {
		return s.records.PutIndexEntry(ctx, index, key, target)
	})
}

// releaseIndex is best-effort cleanup of an advisory claim; a leftover entry
// is reconciled away on read.
func (s *Store) releaseIndex(ctx context.Context, index, key string) {
	if err := s.records.DeleteIndexEntry(ctx, index, key); err != nil {
		s.logger.Warn("release index entry", "index", index, "key", key, "error", err)
	}
}

func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < s.retry.Attempts; attempt++ {
		if attempt > 0 {
			s.retry.Sleep(retryDelay(s.retry.BaseDelay, attempt))
		}
		err = fn()
		if err == nil || !domain.IsStorageUnavailable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		s.logger.Warn("storage unavailable", "op", op, "attempt", attempt+1, "error", err)
	}
	return err
}

func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base << (attempt - 1)
	return delay + time.Duration(rand.Int63n(int64(delay)/2+1))
}

func (s *Store) observe(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, op)
	}
	return ctx, func(err error) {
		duration := time.Since(start)
		if s.metrics != nil {
			s.metrics.Observe(ctx, op, err == nil, duration)
		}
		if span != nil {
			span.End(err)
		}
	}
}

func sortByCreatedAsc(statuses []domain.Status) {
	sort.SliceStable(statuses, func(i, j int) bool {
		if statuses[i].CreatedDate.Equal(statuses[j].CreatedDate) {
			return statuses[i].StatusID < statuses[j].StatusID
		}
		return statuses[i].CreatedDate.Before(statuses[j].CreatedDate)
	})
}

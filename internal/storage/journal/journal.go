// Package journal keeps an append-only record of order completions
// and amendment approvals so those operations stay at-most-once
// across restarts.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	recordKeyPrefix = "approval_"

	walSegmentThreshold = 1000
	walMaxSegments      = 100
	walDirPermissions   = 0o755
)

// OpKind is the guarded operation a record belongs to.
type OpKind string

const (
	OpComplete     OpKind = "complete"
	OpAmendApply   OpKind = "amend_apply"
	OpAmendDiscard OpKind = "amend_discard"
)

const (
	statusPending = "pending"
	statusDone    = "done"
	statusFailed  = "failed"
)

// Record is one guarded operation attempt.
type Record struct {
	ID      string    `json:"id"`
	Op      OpKind    `json:"op"`
	Key     string    `json:"key"`
	OrderID int64     `json:"order_id"`
	Status  string    `json:"status"`
	Time    time.Time `json:"time"`
	Error   string    `json:"error,omitempty"`
}

// Journal is a WAL of approval operations. Replay on open rebuilds
// the set of operation keys that already went through, which makes
// Apply/Complete idempotent against double submission.
type Journal struct {
	mu        sync.Mutex
	wal       *gowal.Wal
	processed map[string]bool
}

// Open initializes the journal under dir, replaying existing records.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, walDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "ensure journal directory %s", dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "log_",
		SegmentThreshold: walSegmentThreshold,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init approval WAL")
	}

	j := &Journal{wal: wal, processed: make(map[string]bool)}

	for msg := range wal.Iterator() {
		if !strings.HasPrefix(msg.Key, recordKeyPrefix) {
			continue
		}
		var rec Record
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			continue
		}
		if rec.Status == statusDone {
			j.processed[rec.Key] = true
		}
	}

	return j, nil
}

// CompletionKey derives the idempotency key for completing an order.
func CompletionKey(orderID int64) string {
	return fmt.Sprintf("%s_%d", OpComplete, orderID)
}

// AmendmentKey derives the idempotency key for resolving an amendment.
func AmendmentKey(op OpKind, amendmentID string) string {
	return fmt.Sprintf("%s_%s", op, amendmentID)
}

// Processed reports whether the operation behind key already went
// through successfully.
func (j *Journal) Processed(key string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.processed[key]
}

// Prepare writes a pending record for the operation.
func (j *Journal) Prepare(op OpKind, key string, orderID int64) (*Record, error) {
	rec := &Record{
		ID:      uuid.New().String(),
		Op:      op,
		Key:     key,
		OrderID: orderID,
		Status:  statusPending,
		Time:    time.Now(),
	}
	if err := j.persist(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkDone finalizes the record and remembers its key as processed.
func (j *Journal) MarkDone(rec *Record) error {
	if rec == nil {
		return nil
	}
	rec.Status = statusDone
	rec.Error = ""
	if err := j.persist(rec); err != nil {
		return err
	}
	j.mu.Lock()
	j.processed[rec.Key] = true
	j.mu.Unlock()
	return nil
}

// MarkFailed records the failure; the key stays retryable.
func (j *Journal) MarkFailed(rec *Record, cause error) error {
	if rec == nil {
		return nil
	}
	rec.Status = statusFailed
	if cause != nil {
		rec.Error = cause.Error()
	}
	return j.persist(rec)
}

func (j *Journal) persist(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal approval record")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	key := fmt.Sprintf("%s%s", recordKeyPrefix, rec.ID)
	nextIndex := j.wal.CurrentIndex() + 1
	return j.wal.Write(nextIndex, key, data)
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wal.Close()
}

// Package archive moves expiring workflow run logs to cold object storage as
// gzip-compressed JSONL, so the retention cleaner can delete them from the
// hot database without losing the audit trail.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"leadloop/internal/types"
)

// ObjectStore abstracts the cold-storage upload. Production wires an S3
// bucket; tests use an in-memory map.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// RunLogArchiver serializes run log batches to JSONL, compresses them, and
// uploads them under a per-company, per-month key.
type RunLogArchiver struct {
	store  ObjectStore
	logger *slog.Logger
}

// NewRunLogArchiver creates a RunLogArchiver.
func NewRunLogArchiver(store ObjectStore, logger *slog.Logger) *RunLogArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunLogArchiver{store: store, logger: logger}
}

// ArchiveRunLogs uploads one batch and returns the object key. The batch is
// keyed by the oldest entry's month so archives shard chronologically.
func (a *RunLogArchiver) ArchiveRunLogs(ctx context.Context, companyID string, logs []types.WorkflowRunLog) (string, error) {
	if len(logs) == 0 {
		return "", nil
	}

	data, err := serializeJSONL(logs)
	if err != nil {
		return "", err
	}

	compressed, err := compress(data)
	if err != nil {
		return "", fmt.Errorf("compressing run log batch: %w", err)
	}

	oldest := logs[0].ExecutedAt
	key := fmt.Sprintf("run-logs/%s/%d/%02d/batch_%s.jsonl.gz",
		companyID, oldest.Year(), oldest.Month(), uuid.New().String())

	if err := a.store.Upload(ctx, key, compressed); err != nil {
		return "", fmt.Errorf("uploading run log archive %s: %w", key, err)
	}

	a.logger.InfoContext(ctx, "uploaded run log archive",
		"company_id", companyID,
		"key", key,
		"entries", len(logs),
		"bytes", len(compressed),
	)

	return key, nil
}

func serializeJSONL(logs []types.WorkflowRunLog) ([]byte, error) {
	var buf bytes.Buffer
	for _, l := range logs {
		line, err := json.Marshal(l)
		if err != nil {
			return nil, fmt.Errorf("marshaling run log %s: %w", l.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

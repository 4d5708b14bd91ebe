package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"leadloop/internal/types"
)

type memoryStore struct {
	objects   map[string][]byte
	uploadErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (s *memoryStore) Upload(_ context.Context, key string, data []byte) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.objects[key] = data
	return nil
}

func sampleLogs() []types.WorkflowRunLog {
	return []types.WorkflowRunLog{
		{
			ID:          "log_1",
			CompanyID:   "co_1",
			WorkflowID:  "wf_1",
			ExecutionID: "ex_1",
			NodeID:      "n1",
			NodeType:    types.NodeSendEmail,
			Status:      types.RunLogSuccess,
			Message:     "email sent: msg_1",
			ExecutedAt:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:          "log_2",
			CompanyID:   "co_1",
			WorkflowID:  "wf_1",
			ExecutionID: "ex_1",
			NodeID:      "n2",
			NodeType:    types.NodeDelay,
			Status:      types.RunLogSuccess,
			ExecutedAt:  time.Date(2026, 3, 10, 9, 0, 1, 0, time.UTC),
		},
	}
}

func TestArchiveRunLogs_RoundTrip(t *testing.T) {
	store := newMemoryStore()
	archiver := NewRunLogArchiver(store, nil)

	key, err := archiver.ArchiveRunLogs(context.Background(), "co_1", sampleLogs())
	if err != nil {
		t.Fatalf("ArchiveRunLogs: %v", err)
	}
	if !strings.HasPrefix(key, "run-logs/co_1/2026/03/batch_") || !strings.HasSuffix(key, ".jsonl.gz") {
		t.Errorf("key = %q", key)
	}

	data, ok := store.objects[key]
	if !ok {
		t.Fatalf("no object stored at %s", key)
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer zr.Close()

	var decoded []types.WorkflowRunLog
	scanner := bufio.NewScanner(zr)
	for scanner.Scan() {
		var l types.WorkflowRunLog
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		decoded = append(decoded, l)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanning archive: %v", err)
	}

	if len(decoded) != 2 || decoded[0].ID != "log_1" || decoded[1].NodeType != types.NodeDelay {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestArchiveRunLogs_EmptyBatch(t *testing.T) {
	store := newMemoryStore()
	archiver := NewRunLogArchiver(store, nil)

	key, err := archiver.ArchiveRunLogs(context.Background(), "co_1", nil)
	if err != nil {
		t.Fatalf("ArchiveRunLogs: %v", err)
	}
	if key != "" || len(store.objects) != 0 {
		t.Error("empty batch must not upload anything")
	}
}

func TestArchiveRunLogs_UploadError(t *testing.T) {
	store := newMemoryStore()
	store.uploadErr = errors.New("bucket unavailable")
	archiver := NewRunLogArchiver(store, nil)

	if _, err := archiver.ArchiveRunLogs(context.Background(), "co_1", sampleLogs()); err == nil {
		t.Fatal("expected upload error to propagate")
	}
}

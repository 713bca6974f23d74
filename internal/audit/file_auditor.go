package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/guillermoBallester/tollgate/internal/core/port"
)

// fileEntry is the NDJSON-serializable form of an audit record.
type fileEntry struct {
	Timestamp  string  `json:"ts"`
	Source     string  `json:"source,omitempty"`
	Rule       string  `json:"rule"`
	KeyValue   any     `json:"key_value"`
	Value      any     `json:"value"`
	Valid      bool    `json:"valid"`
	Reason     string  `json:"reason,omitempty"`
	Sum        string  `json:"sum,omitempty"`
	DurationMS int64   `json:"duration_ms"`
	Error      *string `json:"error"`
}

// FileAuditor writes one JSON object per check to an append-only file.
type FileAuditor struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileAuditor opens (or creates) the file at path for append-only writing.
func NewFileAuditor(path string) (*FileAuditor, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &FileAuditor{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

func (a *FileAuditor) Record(_ context.Context, entry port.AuditEntry) {
	fe := fileEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Source:     entry.Source,
		Rule:       entry.Rule,
		KeyValue:   entry.KeyValue,
		Value:      entry.Value,
		Valid:      entry.Outcome.Valid,
		Reason:     string(entry.Outcome.Reason),
		Sum:        entry.Outcome.Sum,
		DurationMS: entry.DurationMS,
	}
	if entry.Err != nil {
		s := entry.Err.Error()
		fe.Error = &s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.enc.Encode(fe) // best-effort; a check never fails on audit I/O
}

func (a *FileAuditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// NoopAuditor discards all audit entries.
type NoopAuditor struct{}

func (NoopAuditor) Record(context.Context, port.AuditEntry) {}
func (NoopAuditor) Close() error                            { return nil }

var (
	_ port.CheckAuditor = (*FileAuditor)(nil)
	_ port.CheckAuditor = NoopAuditor{}
)

package notify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/okian/raceledger/internal/domain/model"
)

// AuditLog appends every notification to a per-day JSONL file under root,
// e.g. root/2026-10-14/notifications.jsonl.
type AuditLog struct {
	root string
	mu   sync.Mutex
}

// NewAuditLog creates root if needed.
func NewAuditLog(root string) (*AuditLog, error) {
	if root == "" {
		return nil, errors.New("audit root is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, errors.Wrap(err, "create audit root")
	}
	return &AuditLog{root: root}, nil
}

// Name implements worker.Sink.
func (a *AuditLog) Name() string { return "audit" }

// Deliver implements worker.Sink.
func (a *AuditLog) Deliver(_ context.Context, n model.Notification) error { //nolint:gocritic // hugeParam
	b, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}
	b = append(b, '\n')

	dir := filepath.Join(a.root, n.At.UTC().Format("2006-01-02"))

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create audit day")
	}
	f, err := os.OpenFile(filepath.Join(dir, "notifications.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrap(err, "open audit file")
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "append audit line")
	}
	return f.Close()
}

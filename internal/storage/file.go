package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <path>                (JSON snapshot, rewritten via tmp + rename)
//   - <prefix>.fires.jsonl  (append-only JSON Lines firing history)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	path      string
	firesPath string
	firesFile *os.File
}

func openFile(cfg Config, log logx.Logger) (Backend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	firesPath := prefix + ".fires.jsonl"
	ff, err := os.OpenFile(firesPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	log.Debug("file storage opened", logx.String("path", path), logx.String("fires", firesPath))

	return &fileStore{
		log:       log,
		path:      path,
		firesPath: firesPath,
		firesFile: ff,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firesFile == nil {
		return nil
	}
	err := s.firesFile.Close()
	s.firesFile = nil
	return err
}

// Load reads the snapshot. A missing or empty file is an empty snapshot.
func (s *fileStore) Load(ctx context.Context) (Snapshot, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return Snapshot{}, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *fileStore) Save(ctx context.Context, snap Snapshot) error {
	_ = ctx
	if snap.Groups == nil {
		snap.Groups = []reminder.Group{}
	}
	if snap.Reminders == nil {
		snap.Reminders = []reminder.Reminder{}
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) AppendFire(ctx context.Context, rec FireRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firesFile == nil {
		return ErrClosed
	}
	return json.NewEncoder(s.firesFile).Encode(rec)
}

func (s *fileStore) Fires(ctx context.Context, reminderID string, limit int) ([]FireRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.firesPath)
	if errors.Is(err, os.ErrNotExist) {
		return []FireRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var all []FireRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r FireRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		all = append(all, r)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return newestFirst(all, reminderID, limit), nil
}

package kv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	logx "github.com/frkrmn/speed-test/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.kv.snapshot.json (periodic snapshot of the whole map)
//   - <prefix>.kv.journal.jsonl (append-only journal of Set calls)
//
// The journal is compacted into the snapshot every compactEvery writes.
// The full key space is held in memory; history records are small and
// bounded by retention, so this stays cheap.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalPath  string
	journal      *os.File

	data   map[string][]byte
	writes int
	closed bool
}

const compactEvery = 64

type journalRecord struct {
	Key   string `json:"key"`
	Value []byte `json:"value,omitempty"`
	Del   bool   `json:"del,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("kv.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".kv.snapshot.json"
	journalPath := prefix + ".kv.journal.jsonl"

	data := map[string][]byte{}
	if err := loadSnapshot(snapPath, data); err != nil {
		log.Warn("kv: snapshot unreadable, starting from journal only", logx.Err(err))
	}
	replayJournal(journalPath, data)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journalPath:  journalPath,
		journal:      jf,
		data:         data,
	}, nil
}

func (s *fileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := append([]byte(nil), v...)
	return cp, true, nil
}

func (s *fileStore) Set(ctx context.Context, key string, value []byte) error {
	_ = ctx
	if key == "" {
		return errors.New("empty key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	rec := journalRecord{Key: key, Value: value}
	enc := json.NewEncoder(s.journal)
	if err := enc.Encode(rec); err != nil {
		return err
	}
	s.data[key] = append([]byte(nil), value...)

	s.writes++
	if s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Warn("kv: compaction failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	if key == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.data[key]; !ok {
		return nil
	}

	rec := journalRecord{Key: key, Del: true}
	enc := json.NewEncoder(s.journal)
	if err := enc.Encode(rec); err != nil {
		return err
	}
	delete(s.data, key)

	s.writes++
	if s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Warn("kv: compaction failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) List(ctx context.Context, prefix string) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	// Best-effort final snapshot so the journal can start empty next open.
	if err := s.compactLocked(); err != nil {
		s.log.Warn("kv: final compaction failed", logx.Err(err))
	}
	if s.journal != nil {
		err := s.journal.Close()
		s.journal = nil
		return err
	}
	return nil
}

// compactLocked writes the snapshot atomically and truncates the journal.
func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	b, err := json.Marshal(s.data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if s.journal != nil {
		if err := s.journal.Truncate(0); err != nil {
			return err
		}
		if _, err := s.journal.Seek(0, 0); err != nil {
			return err
		}
	}
	return nil
}

func loadSnapshot(path string, into map[string][]byte) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, &into)
}

// replayJournal applies journal records on top of the snapshot.
// Unreadable lines are skipped: a torn final write must not block opening.
func replayJournal(path string, into map[string][]byte) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec journalRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.Key == "" {
			continue
		}
		if rec.Del {
			delete(into, rec.Key)
			continue
		}
		into[rec.Key] = rec.Value
	}
}

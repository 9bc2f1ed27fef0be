package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Store is an append-only, capacity-bounded log of chat records, durable to
// a newline-delimited JSON file. The in-memory view is authoritative for the
// running process; disk writes are best-effort and logged on failure.
type Store struct {
	mu     sync.Mutex
	path   string
	limit  int
	log    []*Entry
	byID   map[int64]*Entry
	nextID int64
	logger *slog.Logger
}

// Open loads the backing file at path (if any) and returns a store capped at
// limit entries. Malformed lines in the file are skipped, not fatal. The id
// counter resumes one past the highest id seen so ids never repeat across
// restarts.
func Open(path string, limit int, logger *slog.Logger) (*Store, error) {
	if limit <= 0 {
		limit = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:   path,
		limit:  limit,
		byID:   make(map[int64]*Entry),
		nextID: 1,
		logger: logger,
	}
	if path != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	var maxID int64
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			s.logger.Warn("skipping malformed history line", "err", err)
			continue
		}
		entry := e
		s.log = append(s.log, &entry)
		s.byID[entry.ID] = &entry
		if entry.ID > maxID {
			maxID = entry.ID
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read history file: %w", err)
	}
	for len(s.log) > s.limit {
		delete(s.byID, s.log[0].ID)
		s.log = s.log[1:]
	}
	s.nextID = maxID + 1
	return nil
}

// Append assigns the next id to e, stores it, evicts the oldest entries if
// the cap is exceeded and writes one JSON line to the backing file. The
// returned copy carries the assigned id.
func (s *Store) Append(e Entry) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.nextID
	s.nextID++
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	entry := e
	s.log = append(s.log, &entry)
	s.byID[entry.ID] = &entry
	for len(s.log) > s.limit {
		delete(s.byID, s.log[0].ID)
		s.log = s.log[1:]
	}
	s.appendLine(&entry)
	return e
}

// Get returns a copy of the entry with the given id.
func (s *Store) Get(id int64) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// MarkDeleted flips the deleted flag on the entry and clears its media, then
// rewrites the whole backing file since a historical line changed. It
// reports false when the id is unknown or the entry is already deleted.
func (s *Store) MarkDeleted(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok || e.Deleted {
		return false
	}
	e.Deleted = true
	e.Media = nil
	s.rewrite()
	return true
}

// Recent returns up to limit entries matching pred (nil matches everything),
// scanned newest to oldest and returned in chronological order.
func (s *Store) Recent(limit int, pred func(*Entry) bool) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for i := len(s.log) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.log[i]
		if pred == nil || pred(e) {
			out = append(out, *e)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Len returns the number of entries currently held in memory.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.log)
}

func (s *Store) appendLine(e *Entry) {
	if s.path == "" {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("marshal history entry", "id", e.ID, "err", err)
		return
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.logger.Error("open history file for append", "err", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		s.logger.Error("append history entry", "id", e.ID, "err", err)
	}
}

func (s *Store) rewrite() {
	if s.path == "" {
		return
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		s.logger.Error("rewrite history file", "err", err)
		return
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, e := range s.log {
		data, err := json.Marshal(e)
		if err != nil {
			s.logger.Error("marshal history entry", "id", e.ID, "err", err)
			continue
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		s.logger.Error("flush history file", "err", err)
	}
}

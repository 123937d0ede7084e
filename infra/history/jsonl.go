package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/buildopt/core/history"
	"github.com/kilianp07/buildopt/infra/logger"
)

// RotatingJSONLStore stores records in a JSONL file with automatic rotation.
type RotatingJSONLStore struct {
	mu     sync.Mutex
	logger *lumberjack.Logger
	path   string
	log    logger.Logger
}

// NewRotatingJSONLStore creates a store with rotation options in megabytes and days.
func NewRotatingJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingJSONLStore, error) {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &RotatingJSONLStore{logger: lj, path: path, log: logger.New("history")}, nil
}

// Append writes the record and triggers rotation if needed.
func (s *RotatingJSONLStore) Append(_ context.Context, rec history.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.logger.Write(append(b, '\n'))
	return err
}

// Query reads the current file and the backups lumberjack rotated out of
// it. Unreadable backups and malformed lines are logged and skipped; a
// failure to read the current file is returned.
func (s *RotatingJSONLStore) Query(ctx context.Context, q history.Query) ([]history.Record, error) {
	ext := filepath.Ext(s.path)
	backups, err := filepath.Glob(strings.TrimSuffix(s.path, ext) + "-*" + ext)
	if err != nil {
		return nil, err
	}
	var res []history.Record
	for _, f := range backups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := s.readJSONL(f, q)
		if err != nil {
			s.log.Warnf("skipping history backup %s: %v", f, err)
		}
		res = append(res, recs...)
	}
	recs, err := s.readJSONL(s.path, q)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read history %s: %w", s.path, err)
	}
	res = append(res, recs...)
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	return q.Trim(res), nil
}

// readJSONL returns the records of path matching q. Lines that do not decode
// are logged and skipped.
func (s *RotatingJSONLStore) readJSONL(path string, q history.Query) ([]history.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var res []history.Record
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		var r history.Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			s.log.Warnf("skipping malformed history line %s:%d: %v", path, line, err)
			continue
		}
		if q.Match(r) {
			res = append(res, r)
		}
	}
	return res, scanner.Err()
}

// Close closes the underlying writer.
func (s *RotatingJSONLStore) Close() error {
	return s.logger.Close()
}

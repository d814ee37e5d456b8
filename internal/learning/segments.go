// Package learning persists the retrieval loop's telemetry: an append-only
// query history and a feedback store, both as rotated JSONL segments.
// Writes are non-critical by contract; failures are logged and swallowed.
package learning

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kb-labs/mind/internal/storage"
)

// Rotation defaults.
const (
	DefaultMaxRecordsPerFile = 1000
	DefaultMaxFiles          = 30
)

// envelope is the versioned line format of every segment record.
type envelope struct {
	V      int             `json:"v"`
	Record json.RawMessage `json:"record"`
}

// segmentStore is the shared rotated-JSONL mechanism under history and
// feedback.
type segmentStore struct {
	store      storage.Storage
	dir        string
	prefix     string
	maxRecords int
	maxFiles   int
	now        func() time.Time
}

func newSegmentStore(store storage.Storage, dir, prefix string, maxRecords, maxFiles int) *segmentStore {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecordsPerFile
	}
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	return &segmentStore{
		store:      store,
		dir:        dir,
		prefix:     prefix,
		maxRecords: maxRecords,
		maxFiles:   maxFiles,
		now:        time.Now,
	}
}

// segments lists segment paths sorted oldest-first. Timestamped names sort
// chronologically.
func (s *segmentStore) segments() ([]string, error) {
	all, err := s.store.List(s.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range all {
		base := p[strings.LastIndexByte(p, '/')+1:]
		if strings.HasPrefix(base, s.prefix+"-") && strings.HasSuffix(base, ".jsonl") {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// append writes one record, rotating to a new segment when the active one
// is full and pruning segments beyond maxFiles.
func (s *segmentStore) append(record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	line, err := json.Marshal(envelope{V: 1, Record: raw})
	if err != nil {
		return err
	}

	segs, err := s.segments()
	if err != nil {
		return err
	}

	var active string
	var current []byte
	if len(segs) > 0 {
		active = segs[len(segs)-1]
		current, err = s.store.Read(active)
		if err != nil && !storage.IsNotExist(err) {
			return err
		}
		if countLines(current) >= s.maxRecords {
			active = ""
			current = nil
		}
	}
	if active == "" {
		active = fmt.Sprintf("%s/%s-%s.jsonl", s.dir, s.prefix, s.now().UTC().Format("20060102T150405.000"))
		segs = append(segs, active)
	}

	var b strings.Builder
	b.Write(current)
	if len(current) > 0 && current[len(current)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.Write(line)
	b.WriteByte('\n')

	if err := s.store.Write(active, []byte(b.String())); err != nil {
		return err
	}

	// Age out the oldest segments.
	for len(segs) > s.maxFiles {
		if err := s.store.Delete(segs[0]); err != nil {
			return err
		}
		segs = segs[1:]
	}
	return nil
}

// read iterates records oldest-first, keeping those the predicate accepts,
// stopping at limit (zero means unbounded).
func (s *segmentStore) read(limit int, keep func(json.RawMessage) bool) ([]json.RawMessage, error) {
	segs, err := s.segments()
	if err != nil {
		return nil, err
	}

	var out []json.RawMessage
	for _, seg := range segs {
		data, err := s.store.Read(seg)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var env envelope
			if err := json.Unmarshal([]byte(line), &env); err != nil {
				continue
			}
			if keep != nil && !keep(env.Record) {
				continue
			}
			out = append(out, env.Record)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func countLines(data []byte) int {
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		n++
	}
	return n
}

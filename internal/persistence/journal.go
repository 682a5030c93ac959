package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// JournalEntry is one appended record. Timestamps are forced monotonic so
// the file replays in write order even across clock adjustments.
type JournalEntry struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Journal is an append-only newline-delimited JSON event log. One writer;
// readers use IterSince on the same process or any tool that reads NDJSON.
type Journal struct {
	f      *os.File
	w      *bufio.Writer
	path   string
	seq    int64
	lastTs time.Time
	log    zerolog.Logger
}

func OpenJournal(path string, log zerolog.Logger) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{f: f, w: bufio.NewWriter(f), path: path, log: log}
	if err := j.recoverSeq(); err != nil {
		f.Close()
		return nil, err
	}
	return j, nil
}

// recoverSeq scans the existing file so appends continue the sequence.
func (j *Journal) recoverSeq() error {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("scan journal: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e JournalEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			// A torn tail line from a crash is expected; stop there.
			j.log.Warn().Err(err).Msg("journal tail unreadable, truncating recovery scan")
			break
		}
		j.seq = e.Seq
		j.lastTs = e.Timestamp
	}
	return sc.Err()
}

// Append writes one entry and flushes it. The payload is marshaled as-is.
func (j *Journal) Append(entryType string, payload any, now time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal journal payload: %w", err)
	}

	if !now.After(j.lastTs) {
		now = j.lastTs.Add(time.Nanosecond)
	}
	j.lastTs = now
	j.seq++

	line, err := json.Marshal(JournalEntry{
		Seq:       j.seq,
		Type:      entryType,
		Timestamp: now,
		Payload:   raw,
	})
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	if _, err := j.w.Write(line); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return j.w.Flush()
}

// IterSince streams entries with Timestamp >= cutoff to fn, stopping early
// if fn returns false.
func (j *Journal) IterSince(cutoff time.Time, fn func(JournalEntry) bool) error {
	if err := j.w.Flush(); err != nil {
		return err
	}

	f, err := os.Open(j.path)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e JournalEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		if e.Timestamp.Before(cutoff) {
			continue
		}
		if !fn(e) {
			return nil
		}
	}
	return sc.Err()
}

// Seq returns the last appended sequence number.
func (j *Journal) Seq() int64 { return j.seq }

func (j *Journal) Close() error {
	if err := j.w.Flush(); err != nil {
		j.f.Close()
		return err
	}
	return j.f.Close()
}

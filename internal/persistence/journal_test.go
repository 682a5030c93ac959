package persistence_test

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"papertrade/internal/persistence"
)

type payload struct {
	Value int `json:"value"`
}

func TestJournal_AppendAndIter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	j, err := persistence.OpenJournal(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer j.Close()

	for i := 1; i <= 3; i++ {
		if err := j.Append("test", payload{Value: i}, t0.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	var got []int
	err = j.IterSince(time.Time{}, func(e persistence.JournalEntry) bool {
		var p payload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, p.Value)
		return true
	})
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("replayed %v, want [1 2 3]", got)
	}
}

func TestJournal_IterSinceCutoff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	j, err := persistence.OpenJournal(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer j.Close()

	for i := 1; i <= 5; i++ {
		if err := j.Append("test", payload{Value: i}, t0.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	var count int
	err = j.IterSince(t0.Add(3*time.Minute), func(persistence.JournalEntry) bool {
		count++
		return true
	})
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	if count != 3 {
		t.Errorf("got %d entries at or after the cutoff, want 3", count)
	}
}

func TestJournal_MonotonicTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	j, err := persistence.OpenJournal(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer j.Close()

	// Same wall-clock instant for every append; the journal must still
	// strictly order the records.
	for i := 0; i < 4; i++ {
		if err := j.Append("test", payload{Value: i}, t0); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	var last time.Time
	err = j.IterSince(time.Time{}, func(e persistence.JournalEntry) bool {
		if !e.Timestamp.After(last) {
			t.Errorf("timestamp %v not after %v", e.Timestamp, last)
		}
		last = e.Timestamp
		return true
	})
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
}

func TestJournal_ReopenContinuesSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")

	j, err := persistence.OpenJournal(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 1; i <= 3; i++ {
		if err := j.Append("test", payload{Value: i}, t0.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	j.Close()

	j2, err := persistence.OpenJournal(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()

	if j2.Seq() != 3 {
		t.Errorf("recovered seq = %d, want 3", j2.Seq())
	}
	if err := j2.Append("test", payload{Value: 4}, t0.Add(10*time.Second)); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if j2.Seq() != 4 {
		t.Errorf("seq after append = %d, want 4", j2.Seq())
	}
}

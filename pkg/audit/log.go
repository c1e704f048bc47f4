// Package audit implements the append-only settlement audit log. Entries
// are hash-chained: each entry's hash covers its canonicalized payload and
// the previous entry's hash, so any mutation breaks the chain.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
)

var ErrEntryNotFound = errors.New("audit entry not found")

// EntryType categorizes audit entries.
type EntryType string

const (
	EntryOracleRegistered EntryType = "oracle_registered"
	EntryRequestOpened    EntryType = "request_opened"
	EntryStatusDecided    EntryType = "status_decided"
	EntryPoliciesCredited EntryType = "policies_credited"
	EntryWithdrawal       EntryType = "withdrawal"
	EntryOperational      EntryType = "operational_change"
)

// Entry is a single immutable audit record.
type Entry struct {
	Sequence     uint64          `json:"sequence"`
	Timestamp    time.Time       `json:"timestamp"`
	EntryType    EntryType       `json:"entry_type"`
	Subject      string          `json:"subject"`
	Payload      json.RawMessage `json:"payload"`
	PreviousHash string          `json:"previous_hash"`
	EntryHash    string          `json:"entry_hash"`
}

// Log is an append-only hash-chained audit log.
type Log struct {
	mu        sync.RWMutex
	entries   []*Entry
	chainHead string
	clock     func() time.Time
}

// NewLog creates an empty audit log.
func NewLog() *Log {
	return &Log{
		chainHead: "genesis",
		clock:     time.Now,
	}
}

// WithClock overrides the clock for testing.
func (l *Log) WithClock(clock func() time.Time) *Log {
	l.clock = clock
	return l
}

// Append records an entry. payload is serialized and canonicalized (JCS)
// before hashing, so semantically equal payloads hash identically.
func (l *Log) Append(entryType EntryType, subject string, payload any) (*Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serialize audit payload: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize audit payload: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := &Entry{
		Sequence:     uint64(len(l.entries)) + 1,
		Timestamp:    l.clock(),
		EntryType:    entryType,
		Subject:      subject,
		Payload:      canonical,
		PreviousHash: l.chainHead,
	}
	entry.EntryHash = hashEntry(entry)

	l.entries = append(l.entries, entry)
	l.chainHead = entry.EntryHash
	return entry, nil
}

// Get retrieves an entry by sequence number.
func (l *Log) Get(seq uint64) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seq == 0 || seq > uint64(len(l.entries)) {
		return nil, fmt.Errorf("%w: sequence %d", ErrEntryNotFound, seq)
	}
	entry := *l.entries[seq-1]
	return &entry, nil
}

// Entries returns copies of all entries, in append order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = *e
	}
	return out
}

// Head returns the current chain head hash.
func (l *Log) Head() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chainHead
}

// Length returns the number of entries.
func (l *Log) Length() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Verify walks the chain and reports the first inconsistency.
func (l *Log) Verify() (bool, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	prev := "genesis"
	for i, e := range l.entries {
		if e.PreviousHash != prev {
			return false, fmt.Sprintf("chain broken at entry %d: expected prev %s, got %s", i+1, prev, e.PreviousHash)
		}
		if hashEntry(e) != e.EntryHash {
			return false, fmt.Sprintf("hash mismatch at entry %d", i+1)
		}
		prev = e.EntryHash
	}
	return true, "chain verified"
}

func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|",
		e.Sequence, e.Timestamp.UTC().Format(time.RFC3339Nano), e.EntryType, e.Subject, e.PreviousHash)
	h.Write(e.Payload)
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

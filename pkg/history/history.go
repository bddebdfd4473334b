// Package history keeps a bounded in-memory log of published
// measurements for the dashboard's log and chart endpoints.
package history

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// DefaultSize bounds memory use at roughly eight hours of entries at
// the default five-minute publish interval.
const DefaultSize = 100

// Entry is one logged measurement.
type Entry struct {
	Time        time.Time `json:"ts"`
	PM1         int       `json:"pm1"`
	PM25        int       `json:"pm25"`
	PM10        int       `json:"pm10"`
	Temperature float32   `json:"temp"`
	Humidity    float32   `json:"hum"`
	Pressure    float32   `json:"pres"`
}

// Log is a fixed-size ring of entries. Safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
}

// NewLog creates a log holding at most size entries. A non-positive
// size falls back to DefaultSize.
func NewLog(size int) *Log {
	if size < 1 {
		size = DefaultSize
	}
	return &Log{entries: make([]Entry, size)}
}

// Append adds an entry, evicting the oldest once full.
func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.head] = e
	l.head = (l.head + 1) % len(l.entries)
	if l.count < len(l.entries) {
		l.count++
	}
}

// Entries returns a copy of the log, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0, l.count)
	start := l.head - l.count
	if start < 0 {
		start += len(l.entries)
	}
	for i := 0; i < l.count; i++ {
		out = append(out, l.entries[(start+i)%len(l.entries)])
	}
	return out
}

// Len returns the number of stored entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Last returns the most recent entry, if any.
func (l *Log) Last() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.count == 0 {
		return Entry{}, false
	}
	idx := l.head - 1
	if idx < 0 {
		idx += len(l.entries)
	}
	return l.entries[idx], true
}

// LoadFile appends entries previously written by SaveFile. A missing
// file is not an error. A corrupt file is removed so the next save
// starts clean.
func (l *Log) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return os.Remove(path)
	}
	for _, e := range entries {
		l.Append(e)
	}
	return nil
}

// SaveFile writes the current entries as a JSON array, oldest first.
func (l *Log) SaveFile(path string) error {
	data, err := json.Marshal(l.Entries())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

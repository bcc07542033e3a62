package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
)

// TestLogger captures log lines in memory. It writes through ZerologLogger,
// so the captured entries use the same field names as production logs.
type TestLogger struct {
	*ZerologLogger
	out *syncBuffer
}

var _ Logger = (*TestLogger)(nil)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewTestLogger creates a TestLogger with the given minimum level.
//
// Example:
//
//	logger := log.NewTestLogger(log.LevelDebug)
//	m, _ := autozi.Setup(counts, batch, autozi.WithLogger(logger))
//	// ...
//	assert.True(t, logger.ContainsMessage("Training finished"))
func NewTestLogger(level Level) *TestLogger {
	out := &syncBuffer{}
	return &TestLogger{ZerologLogger: NewZerologLogger(out, level), out: out}
}

// Output returns the raw JSON lines captured so far.
func (t *TestLogger) Output() string {
	return t.out.String()
}

// Entries parses the captured lines.
func (t *TestLogger) Entries() ([]map[string]interface{}, error) {
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(t.Output()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether an entry has exactly this message.
func (t *TestLogger) ContainsMessage(message string) bool {
	return t.ContainsField("message", message)
}

// ContainsField reports whether an entry has key set to value. Numbers
// compare as float64 after the JSON round trip.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	entries, err := t.Entries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Package models defines data structures shared by the Splunk search and
// KV store clients.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OutputMode is the serialization splunkd uses for a job's result set.
type OutputMode string

const (
	OutputXML      OutputMode = "xml"
	OutputJSON     OutputMode = "json"
	OutputJSONCols OutputMode = "json_cols"
	OutputJSONRows OutputMode = "json_rows"
	OutputCSV      OutputMode = "csv"
	OutputAtom     OutputMode = "atom"
	OutputRaw      OutputMode = "raw"
)

// AllOutputModes is the fixed output mode vocabulary.
var AllOutputModes = []OutputMode{
	OutputXML, OutputJSON, OutputJSONCols, OutputJSONRows, OutputCSV, OutputAtom, OutputRaw,
}

// ParseOutputMode validates s against the output mode vocabulary.
func ParseOutputMode(s string) (OutputMode, error) {
	for _, m := range AllOutputModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: output mode %q", ErrInvalidName, s)
}

// Extension returns the file extension for the mode: the mode name
// truncated at the first underscore (json_rows -> json).
func (m OutputMode) Extension() string {
	s := string(m)
	if i := strings.IndexByte(s, '_'); i >= 0 {
		return s[:i]
	}
	return s
}

// Message is a single status record from the JSON result stream.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Messages maps severity to message text. Later messages of the same
// severity replace earlier ones.
type Messages map[string]string

// Add records m, replacing any previous text for the same severity.
func (ms Messages) Add(m Message) {
	ms[m.Type] = m.Text
}

// HistoryRecord is the audit entry a session appends on every submit.
type HistoryRecord struct {
	Name        string    `json:"name"`
	Query       string    `json:"query"`
	SID         string    `json:"sid"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// JobContent is a snapshot of remote job metadata as returned by splunkd.
// Values may be JSON booleans/numbers or their string encodings.
type JobContent map[string]any

// IsDone reports whether the job has finished.
func (c JobContent) IsDone() bool {
	return asBool(c["isDone"])
}

// IsFailed reports whether the job has failed.
func (c JobContent) IsFailed() bool {
	return asBool(c["isFailed"])
}

// DispatchState returns the dispatch state (QUEUED, RUNNING, DONE, ...).
func (c JobContent) DispatchState() string {
	s, _ := c["dispatchState"].(string)
	return s
}

// DoneProgress returns completion in the range [0, 1].
func (c JobContent) DoneProgress() float64 {
	return asFloat(c["doneProgress"])
}

// ResultCount returns the number of results the job produced.
func (c JobContent) ResultCount() int {
	return int(asFloat(c["resultCount"]))
}

// EventCount returns the number of events the job scanned.
func (c JobContent) EventCount() int {
	return int(asFloat(c["eventCount"]))
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		return err == nil && b
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return false
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	}
	return 0
}

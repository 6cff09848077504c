package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/raphaelgruber/splunkgo/internal/models"
)

// Record is one item yielded by Reader: either a data row or a status message.
type Record struct {
	Row     map[string]any
	Message *models.Message
}

// jsonDocument covers both the results endpoint (one document with a
// results array) and the export endpoint (one document per row).
type jsonDocument struct {
	Preview  bool             `json:"preview"`
	Offset   int              `json:"offset"`
	LastRow  bool             `json:"lastrow"`
	Messages []models.Message `json:"messages"`
	Result   map[string]any   `json:"result"`
	Results  []map[string]any `json:"results"`
}

// Reader streams records out of a json mode result stream. The stream may
// hold a single document or a concatenation of documents.
type Reader struct {
	dec     *json.Decoder
	pending []Record
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Reader{dec: dec}
}

// Next returns the next record, or io.EOF when the stream is exhausted.
func (r *Reader) Next() (Record, error) {
	for len(r.pending) == 0 {
		var doc jsonDocument
		if err := r.dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return Record{}, io.EOF
			}
			return Record{}, fmt.Errorf("decode json document: %w", err)
		}
		r.queue(doc)
	}

	rec := r.pending[0]
	r.pending = r.pending[1:]
	return rec, nil
}

func (r *Reader) queue(doc jsonDocument) {
	for i := range doc.Messages {
		m := doc.Messages[i]
		r.pending = append(r.pending, Record{Message: &m})
	}
	if doc.Result != nil {
		r.pending = append(r.pending, Record{Row: doc.Result})
	}
	for _, row := range doc.Results {
		r.pending = append(r.pending, Record{Row: row})
	}
}

// JSONResult is the decoded json mode stream.
type JSONResult struct {
	// Results holds data rows in stream order.
	Results []map[string]any

	// Messages maps severity to the last message text seen for it.
	Messages models.Messages

	// Log holds every message in arrival order.
	Log []models.Message
}

// DecodeJSON drains a json mode stream, splitting rows from status messages.
func DecodeJSON(r io.Reader) (*JSONResult, error) {
	out := &JSONResult{
		Results:  []map[string]any{},
		Messages: models.Messages{},
		Log:      []models.Message{},
	}

	rd := NewReader(r)
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if rec.Message != nil {
			out.Messages.Add(*rec.Message)
			out.Log = append(out.Log, *rec.Message)
			continue
		}
		out.Results = append(out.Results, rec.Row)
	}
}

package results

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/raphaelgruber/splunkgo/internal/models"
)

// Decoder decodes the stream formats that need a re-readable source.
// The zero value writes scratch files to os.TempDir().
type Decoder struct {
	// Dir is where scratch artifacts are created. Empty means os.TempDir().
	Dir string

	// InMemory buffers the stream in memory instead of on disk.
	InMemory bool
}

// Rows is a json_rows result document.
type Rows struct {
	Preview    bool             `json:"preview"`
	InitOffset int              `json:"init_offset"`
	Messages   []models.Message `json:"messages"`
	Fields     []any            `json:"fields"`
	Rows       [][]any          `json:"rows"`
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	return len(r.Rows)
}

// Columns is a json_cols result document.
type Columns struct {
	Preview    bool             `json:"preview"`
	InitOffset int              `json:"init_offset"`
	Messages   []models.Message `json:"messages"`
	Fields     []any            `json:"fields"`
	Columns    [][]any          `json:"columns"`
}

// Len returns the number of rows, taken from the longest column.
func (c *Columns) Len() int {
	n := 0
	for _, col := range c.Columns {
		n = max(n, len(col))
	}
	return n
}

// DecodeXML returns the stream's lines, each keeping its trailing newline.
func (d Decoder) DecodeXML(r io.Reader) ([][]byte, error) {
	var lines [][]byte
	err := d.withScratch(r, "xml", func(src io.Reader) error {
		br := bufio.NewReader(src)
		for {
			line, err := br.ReadBytes('\n')
			if len(line) > 0 {
				lines = append(lines, line)
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}
	if lines == nil {
		lines = [][]byte{}
	}
	return lines, nil
}

// DecodeRows decodes a json_rows document.
func (d Decoder) DecodeRows(r io.Reader) (*Rows, error) {
	var out Rows
	if err := d.withScratch(r, "json", decodeJSONInto(&out)); err != nil {
		return nil, fmt.Errorf("decode json_rows: %w", err)
	}
	if out.Rows == nil {
		out.Rows = [][]any{}
	}
	return &out, nil
}

// DecodeColumns decodes a json_cols document.
func (d Decoder) DecodeColumns(r io.Reader) (*Columns, error) {
	var out Columns
	if err := d.withScratch(r, "json", decodeJSONInto(&out)); err != nil {
		return nil, fmt.Errorf("decode json_cols: %w", err)
	}
	if out.Columns == nil {
		out.Columns = [][]any{}
	}
	return &out, nil
}

func decodeJSONInto(v any) func(io.Reader) error {
	return func(src io.Reader) error {
		dec := json.NewDecoder(src)
		dec.UseNumber()
		return dec.Decode(v)
	}
}

// withScratch persists r, then hands a fresh reader over the persisted copy
// to fn. The scratch artifact is removed on every return path.
func (d Decoder) withScratch(r io.Reader, ext string, fn func(io.Reader) error) error {
	if d.InMemory {
		buf, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("buffer stream: %w", err)
		}
		return fn(bytes.NewReader(buf))
	}

	dir := d.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	name := filepath.Join(dir, fmt.Sprintf("splunk_%s.%s", uuidHex(), ext))

	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("create scratch file: %w", err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(name)
	}()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write scratch file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind scratch file: %w", err)
	}
	return fn(f)
}

func uuidHex() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:])
}

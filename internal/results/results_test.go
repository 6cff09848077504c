package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rowsDoc = `{"preview":false,"init_offset":0,"messages":[],"fields":["host","count"],` +
	`"rows":[["web-01","12"],["web-02","7"],["db-01","3"]]}`

const colsDoc = `{"preview":false,"init_offset":0,"messages":[],"fields":["host","count"],` +
	`"columns":[["web-01","web-02","db-01"],["12","7","3"]]}`

// failingReader returns data then a non-EOF error.
type failingReader struct {
	data []byte
	done bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.done {
		return 0, errors.New("connection reset")
	}
	f.done = true
	return copy(p, f.data), nil
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch artifacts should be removed")
}

func TestDecodeCSV(t *testing.T) {
	in := "host,count\nweb-01,12\n\"web,02\",7\n"

	table, err := DecodeCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"host", "count"}, table.Columns)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, map[string]string{"host": "web,02", "count": "7"}, table.Record(1))
}

func TestDecodeCSV_Empty(t *testing.T) {
	table, err := DecodeCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}

func TestDecodeCSV_RaggedRows(t *testing.T) {
	table, err := DecodeCSV(strings.NewReader("a,b,c\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, table.Record(0))
}

func TestDecodeRows_RoundTripRowCount(t *testing.T) {
	dir := t.TempDir()
	d := Decoder{Dir: dir}

	rows, err := d.DecodeRows(strings.NewReader(rowsDoc))
	require.NoError(t, err)
	assertDirEmpty(t, dir)

	require.Equal(t, 3, rows.Len())
	assert.Equal(t, "web-02", rows.Rows[1][0])

	encoded, err := json.Marshal(rows)
	require.NoError(t, err)

	var raw struct {
		Rows [][]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(rowsDoc), &raw))

	var again Rows
	require.NoError(t, json.Unmarshal(encoded, &again))
	assert.Len(t, again.Rows, len(raw.Rows))
	for i := range raw.Rows {
		assert.Equal(t, raw.Rows[i], again.Rows[i], "row %d", i)
	}
}

func TestDecodeColumns(t *testing.T) {
	dir := t.TempDir()
	d := Decoder{Dir: dir}

	cols, err := d.DecodeColumns(strings.NewReader(colsDoc))
	require.NoError(t, err)
	assertDirEmpty(t, dir)

	assert.Equal(t, 3, cols.Len())
	assert.Equal(t, []any{"host", "count"}, cols.Fields)
}

func TestDecodeRows_ScratchRemovedOnDecodeFailure(t *testing.T) {
	dir := t.TempDir()
	d := Decoder{Dir: dir}

	_, err := d.DecodeRows(strings.NewReader(`{"rows": [[`))
	require.Error(t, err)
	assertDirEmpty(t, dir)
}

func TestDecodeXML_ScratchRemovedOnCopyFailure(t *testing.T) {
	dir := t.TempDir()
	d := Decoder{Dir: dir}

	_, err := d.DecodeXML(&failingReader{data: []byte("<results>\n")})
	require.Error(t, err)
	assertDirEmpty(t, dir)
}

func TestDecodeXML_Lines(t *testing.T) {
	in := "<?xml version='1.0'?>\n<results>\n<result/>\n</results>"

	for _, d := range []Decoder{{Dir: t.TempDir()}, {InMemory: true}} {
		lines, err := d.DecodeXML(strings.NewReader(in))
		require.NoError(t, err)
		require.Len(t, lines, 4)
		assert.Equal(t, []byte("<results>\n"), lines[1])
		assert.Equal(t, []byte("</results>"), lines[3])
		assert.Equal(t, in, string(bytes.Join(lines, nil)))
	}
}

func TestDecodeJSON_ResultsDocument(t *testing.T) {
	in := `{"preview":false,"init_offset":0,` +
		`"messages":[{"type":"INFO","text":"first"},{"type":"INFO","text":"second"},{"type":"WARN","text":"careful"}],` +
		`"fields":[{"name":"host"}],"results":[{"host":"a"},{"host":"b"}]}`

	res, err := DecodeJSON(strings.NewReader(in))
	require.NoError(t, err)

	assert.Len(t, res.Results, 2)
	assert.Equal(t, "second", res.Messages["INFO"], "last writer wins per severity")
	assert.Equal(t, "careful", res.Messages["WARN"])
	assert.Len(t, res.Log, 3)
}

func TestDecodeJSON_ExportStream(t *testing.T) {
	in := `{"preview":false,"offset":0,"result":{"host":"a"}}
{"preview":false,"offset":1,"result":{"host":"b"}}
{"messages":[{"type":"ERROR","text":"bad field"}]}
{"preview":false,"offset":2,"lastrow":true,"result":{"host":"c"}}
`
	res, err := DecodeJSON(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, res.Results, 3)
	assert.Equal(t, "c", res.Results[2]["host"])
	assert.Equal(t, "bad field", res.Messages["ERROR"])
}

func TestDecodeJSON_Empty(t *testing.T) {
	res, err := DecodeJSON(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Empty(t, res.Messages)
}

func TestReader_Next(t *testing.T) {
	rd := NewReader(strings.NewReader(`{"messages":[{"type":"INFO","text":"hi"}],"results":[{"a":1}]}`))

	rec, err := rd.Next()
	require.NoError(t, err)
	require.NotNil(t, rec.Message)
	assert.Equal(t, "hi", rec.Message.Text)

	rec, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), rec.Row["a"])

	_, err = rd.Next()
	assert.ErrorIs(t, err, io.EOF)
}

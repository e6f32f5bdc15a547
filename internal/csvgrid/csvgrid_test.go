package csvgrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasic(t *testing.T) {
	g := Parse("Site ID,Region\n\"Site, A\",North\n")
	require.Len(t, g, 2)
	assert.Equal(t, []string{"Site ID", "Region"}, g[0])
	assert.Equal(t, []string{"Site, A", "North"}, g[1])
}

func TestParseEmptyInput(t *testing.T) {
	assert.Len(t, Parse(""), 0)
}

func TestParseEmptyLine(t *testing.T) {
	g := Parse("a,b\n\nc,d\n")
	require.Len(t, g, 3)
	assert.Equal(t, []string{""}, g[1], "empty line parses to one empty cell")
}

func TestParseNoTrailingNewline(t *testing.T) {
	g := Parse("a,b")
	require.Len(t, g, 1)
	assert.Equal(t, []string{"a", "b"}, g[0])
}

func TestParseTrailingComma(t *testing.T) {
	g := Parse("a,\n")
	require.Len(t, g, 1)
	assert.Equal(t, []string{"a", ""}, g[0])
}

func TestParseDoubledQuotes(t *testing.T) {
	g := Parse("\"he said \"\"hi\"\"\",x\n")
	require.Len(t, g, 1)
	assert.Equal(t, []string{`he said "hi"`, "x"}, g[0])
}

func TestParseQuotedNewline(t *testing.T) {
	g := Parse("\"line1\nline2\",x\n")
	require.Len(t, g, 1)
	assert.Equal(t, []string{"line1\nline2", "x"}, g[0])
}

func TestParseCRLF(t *testing.T) {
	g := Parse("a,b\r\nc,d\r\n")
	require.Len(t, g, 2)
	assert.Equal(t, []string{"a", "b"}, g[0])
	assert.Equal(t, []string{"c", "d"}, g[1])
}

func TestParseMidFieldQuote(t *testing.T) {
	// a bare quote after field text stays verbatim instead of erroring
	g := Parse("5\" antenna,x\n")
	require.Len(t, g, 1)
	assert.Equal(t, []string{`5" antenna`, "x"}, g[0])
}

func TestEncodeQuoting(t *testing.T) {
	g := Grid{{"plain", "with,comma", `with "quote"`, "with\nnewline"}}
	assert.Equal(t, "plain,\"with,comma\",\"with \"\"quote\"\"\",\"with\nnewline\"\n", Encode(g))
}

func TestEncodeByteEquivalence(t *testing.T) {
	g := Grid{{"Site ID", "Region"}, {"Site, A", "North"}}
	assert.Equal(t, "Site ID,Region\n\"Site, A\",North\n", Encode(g))
}

func TestRoundTrip(t *testing.T) {
	grids := []Grid{
		{{"a", "b"}, {"c", "d"}},
		{{""}},
		{{"", "", ""}},
		{{"comma,here", `quote"here`, "both\",\"here"}},
		{{"multi\nline", "tab\there"}},
		{{`"leading quote`, `trailing quote"`}},
	}
	for _, g := range grids {
		assert.Equal(t, g, Parse(Encode(g)))
	}
}

func TestEditorSetCell(t *testing.T) {
	e := NewEditor(Grid{{"a", "b"}, {"c", "d"}}, 1)
	require.NoError(t, e.SetCell(1, 0, "x"))
	v, err := e.Cell(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	assert.ErrorIs(t, e.SetCell(2, 0, "x"), ErrOutOfRange)
	assert.ErrorIs(t, e.SetCell(0, 2, "x"), ErrOutOfRange)
	assert.ErrorIs(t, e.SetCell(-1, 0, "x"), ErrOutOfRange)

	// header rows still accept cell edits
	require.NoError(t, e.SetCell(0, 0, "hdr"))
}

func TestEditorAppendRow(t *testing.T) {
	e := NewEditor(Grid{{"a", "b", "c"}}, 1)
	e.AppendRow()
	require.Equal(t, 2, e.Rows())
	assert.Equal(t, []string{"", "", ""}, e.Grid()[1])
	assert.Equal(t, []string{"a", "b", "c"}, e.Grid()[0], "existing rows unchanged")

	empty := NewEditor(Grid{}, 0)
	empty.AppendRow()
	require.Equal(t, 1, empty.Rows())
	assert.Equal(t, []string{""}, empty.Grid()[0], "width 1 on empty grid")
}

func TestEditorDeleteRowHeaderProtection(t *testing.T) {
	g := Grid{{"h1"}, {"h2"}, {"data1"}, {"data2"}}
	e := NewEditor(g.Clone(), 2)

	for r := 0; r < 2; r++ {
		err := e.DeleteRow(r)
		assert.ErrorIs(t, err, ErrHeaderProtected)
		assert.Equal(t, g, e.Grid(), "grid unchanged after protected delete")
	}

	require.NoError(t, e.DeleteRow(2))
	assert.Equal(t, Grid{{"h1"}, {"h2"}, {"data2"}}, e.Grid())

	assert.ErrorIs(t, e.DeleteRow(5), ErrOutOfRange)
}

func TestEditorCSV(t *testing.T) {
	e := NewEditor(Grid{{"a", "b"}, {"c,1", "d"}}, 1)
	assert.Equal(t, "a,b\n\"c,1\",d\n", e.CSV())
}

func TestBulkDocumentNavigation(t *testing.T) {
	d := NewBulkDocument([]Payload{
		{RecordID: "BOQ-2026-001", Label: "Site A", Grid: Grid{{"h"}, {"1"}}},
		{RecordID: "BOQ-2026-002", Label: "Site B", Grid: Grid{{"h"}, {"2"}}},
		{RecordID: "BOQ-2026-003", Label: "Site C", Grid: Grid{{"h"}, {"3"}}},
	}, 1)

	require.Equal(t, 3, d.Len())
	assert.Equal(t, 0, d.Index())
	d.Prev()
	assert.Equal(t, 0, d.Index(), "Prev clamps at 0")
	d.Next()
	d.Next()
	d.Next()
	assert.Equal(t, 2, d.Index(), "Next clamps at last entry")

	// edit applies only to the current entry
	require.NoError(t, d.Current().Editor.SetCell(1, 0, "edited"))
	payloads := d.Payloads()
	require.Len(t, payloads, 3)
	assert.Equal(t, "1", payloads[0].Grid[1][0])
	assert.Equal(t, "edited", payloads[2].Grid[1][0])
	assert.Equal(t, "BOQ-2026-001", payloads[0].RecordID, "download all keeps order, ignores index")
}

func TestBulkDocumentEmpty(t *testing.T) {
	d := NewBulkDocument(nil, 1)
	assert.Nil(t, d.Current())
	assert.Len(t, d.Payloads(), 0)
}

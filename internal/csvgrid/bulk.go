package csvgrid

// Payload is the server round-trip unit for workbook export: one record's
// grid plus its identity and sheet label.
type Payload struct {
	RecordID string `json:"record_id"`
	Label    string `json:"label"`
	Grid     Grid   `json:"grid"`
}

// Entry is one record inside a BulkDocument.
type Entry struct {
	RecordID string
	Label    string
	Editor   *Editor
}

// BulkDocument is an ordered sequence of grids shown one at a time with
// previous/next navigation. Edits apply only to the current entry; download
// serializes every entry regardless of position.
type BulkDocument struct {
	entries []Entry
	index   int
}

// NewBulkDocument builds a document from payloads, each wrapped in an editor
// with the given header boundary.
func NewBulkDocument(payloads []Payload, headerBoundary int) *BulkDocument {
	d := &BulkDocument{}
	for _, p := range payloads {
		d.entries = append(d.entries, Entry{
			RecordID: p.RecordID,
			Label:    p.Label,
			Editor:   NewEditor(p.Grid, headerBoundary),
		})
	}
	return d
}

// Len returns the number of entries.
func (d *BulkDocument) Len() int { return len(d.entries) }

// Index returns the current position.
func (d *BulkDocument) Index() int { return d.index }

// Current returns the entry at the current position, or nil when empty.
func (d *BulkDocument) Current() *Entry {
	if len(d.entries) == 0 {
		return nil
	}
	return &d.entries[d.index]
}

// Next advances the position, clamped to the last entry.
func (d *BulkDocument) Next() {
	if d.index < len(d.entries)-1 {
		d.index++
	}
}

// Prev moves the position back, clamped to the first entry.
func (d *BulkDocument) Prev() {
	if d.index > 0 {
		d.index--
	}
}

// Payloads serializes every entry, in order, independent of the current
// position. This backs "download all".
func (d *BulkDocument) Payloads() []Payload {
	out := make([]Payload, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e.Editor.BulkPayload(e.RecordID, e.Label))
	}
	return out
}

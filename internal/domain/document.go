package domain

import "time"

// DocumentMetadata is one key/value pair attached to a document
type DocumentMetadata struct {
	KeyID   int    `json:"key_id"`
	ValueID int    `json:"value_id"`
	Key     string `json:"key"`
	Value   string `json:"value"`
}

// Document is the subset of a Virtualpaper document that rules read and write
type Document struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Content     string             `json:"content"`
	Date        int64              `json:"date"` // unix milliseconds, as the backend sends it
	Metadata    []DocumentMetadata `json:"metadata"`
}

// Time returns the document date
func (d *Document) Time() time.Time {
	return time.UnixMilli(d.Date).UTC()
}

// SetTime stores t as the document date
func (d *Document) SetTime(t time.Time) {
	d.Date = t.UnixMilli()
}

// HasKey reports whether any metadata value is attached under key
func (d *Document) HasKey(keyID int) bool {
	for _, m := range d.Metadata {
		if m.KeyID == keyID {
			return true
		}
	}
	return false
}

// HasKeyValue reports whether the exact key/value pair is attached
func (d *Document) HasKeyValue(keyID, valueID int) bool {
	for _, m := range d.Metadata {
		if m.KeyID == keyID && m.ValueID == valueID {
			return true
		}
	}
	return false
}

// Clone returns a copy that can be mutated without touching d
func (d *Document) Clone() *Document {
	out := *d
	out.Metadata = append([]DocumentMetadata(nil), d.Metadata...)
	return &out
}

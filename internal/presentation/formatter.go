package presentation

import (
	"encoding/json"
	"io"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatDocument formats a document as JSON
func (f *Formatter) FormatDocument(doc DocumentDTO) error {
	return f.encode(doc)
}

// FormatHistory formats the undo history as JSON
func (f *Formatter) FormatHistory(history HistoryDTO) error {
	return f.encode(history)
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/zjrosen/ledgerkit/internal/store"
)

// RecordModel is one row of the records table. Values are JSON encoded.
type RecordModel struct {
	ID       string
	Type     string
	ParentID sql.NullString
	List     string
	Position int
	Values   string
}

func toRecordModel(r store.Record) (*RecordModel, error) {
	vals, err := json.Marshal(r.Values)
	if err != nil {
		return nil, fmt.Errorf("encoding values of %s: %w", r.ID, err)
	}
	m := &RecordModel{
		ID:       r.ID.String(),
		Type:     r.Set,
		List:     r.List,
		Position: r.Position,
		Values:   string(vals),
	}
	if r.ParentID != uuid.Nil {
		m.ParentID = sql.NullString{String: r.ParentID.String(), Valid: true}
	}
	return m, nil
}

// toDomain converts the row back. Values keep their JSON types; the store
// decodes them against the schema.
func (m *RecordModel) toDomain() (store.Record, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return store.Record{}, fmt.Errorf("record id %q: %w", m.ID, err)
	}
	r := store.Record{
		ID:       id,
		Set:      m.Type,
		List:     m.List,
		Position: m.Position,
	}
	if m.ParentID.Valid {
		if r.ParentID, err = uuid.Parse(m.ParentID.String); err != nil {
			return store.Record{}, fmt.Errorf("record %s parent %q: %w", m.ID, m.ParentID.String, err)
		}
	}
	if err := json.Unmarshal([]byte(m.Values), &r.Values); err != nil {
		return store.Record{}, fmt.Errorf("decoding values of %s: %w", m.ID, err)
	}
	return r, nil
}

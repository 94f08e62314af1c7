package sqlite

import (
	"fmt"
	"regexp"
	"time"

	"github.com/mesh-intelligence/unhitch/pkg/types"
)

const (
	upsertRecordSQL = `INSERT INTO records (kind, key, data, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (kind, key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`
	deleteRecordSQL = `DELETE FROM records WHERE kind = ? AND key = ?`
	selectRecordSQL = `SELECT kind, key, data, updated_at FROM records WHERE kind = ? AND key = ?`
	listRecordsSQL  = `SELECT kind, key, data, updated_at FROM records WHERE kind = ? ORDER BY key`
	findRecordsSQL  = `SELECT kind, key, data, updated_at FROM records
WHERE kind = ? AND json_extract(data, ?) = ? ORDER BY key`
	countRecordsSQL = `SELECT COUNT(*) FROM records WHERE kind = ?`
)

// validField matches the JSON field names Find accepts.
var validField = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (types.Record, error) {
	var (
		rec     types.Record
		data    string
		updated string
	)
	if err := s.Scan(&rec.Kind, &rec.Key, &data, &updated); err != nil {
		return types.Record{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return types.Record{}, fmt.Errorf("parse updated_at for %s %s: %w", rec.Kind, rec.Key, err)
	}
	rec.Data = []byte(data)
	rec.UpdatedAt = ts
	return rec, nil
}

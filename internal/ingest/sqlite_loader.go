package ingest

import (
	"database/sql"
	"fmt"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"
)

// StreamSQLite iterates over all records in the results table of a SQLite
// database, calling fn for each one. Only one parsed record is alive at a
// time, keeping memory usage constant.
func StreamSQLite(dbPath string, fn func(doc Document) error) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	rows, err := db.Query("SELECT id, record FROM results ORDER BY id")
	if err != nil {
		return fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		parsed, err := oj.ParseString(raw)
		if err != nil {
			return fmt.Errorf("parse record %s: %w", id, err)
		}
		src, ok := parsed.(map[string]any)
		if !ok {
			return fmt.Errorf("record %s is %T, not an object", id, parsed)
		}
		if err := fn(Document{ID: id, Source: src}); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LoadSQLite reads every record of the results table into memory.
// Prefer StreamSQLite for large databases.
func LoadSQLite(dbPath string) ([]Document, error) {
	var docs []Document
	err := StreamSQLite(dbPath, func(doc Document) error {
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

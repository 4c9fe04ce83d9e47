package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agentic-research/fieldmap/api"
	"github.com/agentic-research/fieldmap/internal/mapping"
	_ "modernc.org/sqlite"
)

// DefaultBatchSize is the number of rows written per transaction.
const DefaultBatchSize = 10000

// ErrNoMapping is returned when a database holds no persisted mapping.
var ErrNoMapping = errors.New("no mapping persisted")

// SQLiteWriter persists resolved fields and mapping versions to SQLite.
type SQLiteWriter struct {
	db         *sql.DB
	tx         *sql.Tx
	stmtDelete *sql.Stmt
	stmtField  *sql.Stmt
	batchSize  int
	count      int
	logger     *slog.Logger
	mu         sync.Mutex
}

// NewSQLiteWriter creates a new writer and initializes the schema.
// batchSize <= 0 selects DefaultBatchSize.
func NewSQLiteWriter(dbPath string, batchSize int, logger *slog.Logger) (*SQLiteWriter, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// one connection: the batch transaction owns the database
	db.SetMaxOpenConns(1)

	// Performance tuning for bulk insert
	for _, pragma := range []string{"PRAGMA synchronous = OFF", "PRAGMA journal_mode = MEMORY"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS fields (
		doc_id TEXT NOT NULL,
		ord INTEGER NOT NULL,
		path TEXT NOT NULL,
		type TEXT NOT NULL,
		value JSON,
		copied_from TEXT,
		PRIMARY KEY (doc_id, ord)
	) WITHOUT ROWID;

	CREATE TABLE IF NOT EXISTS mappings (
		version INTEGER PRIMARY KEY,
		mapping JSON NOT NULL,
		created INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	w := &SQLiteWriter{
		db:        db,
		batchSize: batchSize,
		logger:    logger,
	}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLiteWriter) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmtDelete, err = w.tx.Prepare(`DELETE FROM fields WHERE doc_id = ?`)
	if err != nil {
		return err
	}
	w.stmtField, err = w.tx.Prepare(`
		INSERT INTO fields (doc_id, ord, path, type, value, copied_from)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	return err
}

func (w *SQLiteWriter) commitTx() error {
	if w.stmtDelete != nil {
		_ = w.stmtDelete.Close()
	}
	if w.stmtField != nil {
		_ = w.stmtField.Close()
	}
	return w.tx.Commit()
}

// Store replaces the rows of doc. A document is written whole or not at
// all: values are encoded before anything is deleted, and the rows are
// written under a savepoint inside the batch transaction.
func (w *SQLiteWriter) Store(ctx context.Context, doc *ParsedDocument) error {
	rows, err := encodeRows(doc)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.tx.ExecContext(ctx, `SAVEPOINT doc`); err != nil {
		return fmt.Errorf("savepoint %s: %w", doc.ID, err)
	}
	if err := w.writeRows(ctx, doc.ID, rows); err != nil {
		if _, rbErr := w.tx.Exec(`ROLLBACK TO doc`); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback %s: %w", doc.ID, rbErr))
		}
		_, _ = w.tx.Exec(`RELEASE doc`)
		return err
	}
	if _, err := w.tx.Exec(`RELEASE doc`); err != nil {
		return fmt.Errorf("release %s: %w", doc.ID, err)
	}

	w.count += len(rows) + 1
	if w.count >= w.batchSize {
		if err := w.flush(); err != nil {
			return err
		}
	}
	return nil
}

type fieldRow struct {
	path, typ, value string
	copied           *string
}

func encodeRows(doc *ParsedDocument) ([]fieldRow, error) {
	rows := make([]fieldRow, len(doc.Fields))
	for i, f := range doc.Fields {
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %s [%s]: %w", doc.ID, f.Path, err)
		}
		rows[i] = fieldRow{path: f.Path.String(), typ: string(f.Type), value: string(value)}
		if f.CopiedFrom != nil {
			s := f.CopiedFrom.String()
			rows[i].copied = &s
		}
	}
	return rows, nil
}

func (w *SQLiteWriter) writeRows(ctx context.Context, docID string, rows []fieldRow) error {
	if _, err := w.stmtDelete.ExecContext(ctx, docID); err != nil {
		return fmt.Errorf("delete %s: %w", docID, err)
	}
	for i, r := range rows {
		if _, err := w.stmtField.ExecContext(ctx, docID, i, r.path, r.typ, r.value, r.copied); err != nil {
			return fmt.Errorf("insert %s [%s]: %w", docID, r.path, err)
		}
	}
	return nil
}

func (w *SQLiteWriter) flush() error {
	if err := w.commitTx(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if err := w.beginTx(); err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	w.count = 0
	return nil
}

// SaveMapping records snap under its version. Saving a version twice keeps
// the first copy.
func (w *SQLiteWriter) SaveMapping(snap *mapping.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, err := json.Marshal(snap.Export())
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	_, err = w.tx.Exec(`INSERT OR IGNORE INTO mappings (version, mapping, created) VALUES (?, ?, ?)`,
		snap.Version, string(b), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("insert mapping v%d: %w", snap.Version, err)
	}
	return nil
}

// Close commits the pending batch and closes the database.
func (w *SQLiteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	if _, err := w.db.Exec(`CREATE INDEX IF NOT EXISTS idx_fields_path ON fields(path)`); err != nil {
		w.logger.Warn("SQLiteWriter: index creation failed", "error", err)
	}
	return w.db.Close()
}

// LoadLatestMapping reads the highest persisted mapping version.
func LoadLatestMapping(dbPath string) (*api.Mapping, uint64, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, 0, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	var version uint64
	var raw string
	err = db.QueryRow(`SELECT version, mapping FROM mappings ORDER BY version DESC LIMIT 1`).Scan(&version, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNoMapping
	}
	if err != nil {
		return nil, 0, fmt.Errorf("query mappings: %w", err)
	}

	def, err := mapping.ParseDefinition([]byte(raw), false)
	if err != nil {
		return nil, 0, fmt.Errorf("decode mapping v%d: %w", version, err)
	}
	return def, version, nil
}

// Interface compliance
var _ FieldStore = (*SQLiteWriter)(nil)

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/matthewbaird/entitygrid/internal/types"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS entities (
	type TEXT    NOT NULL,
	id   INTEGER NOT NULL,
	body TEXT    NOT NULL,
	PRIMARY KEY (type, id)
);
CREATE TABLE IF NOT EXISTS changes (
	seq  INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT    NOT NULL,
	type TEXT    NOT NULL,
	id   INTEGER NOT NULL,
	body TEXT
);
CREATE INDEX IF NOT EXISTS changes_type_seq ON changes (type, seq);
`

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at dsn and creates the tables.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Create(ctx context.Context, e *types.Entity) (Change, error) {
	if err := e.Validate(); err != nil {
		return Change{}, err
	}
	var c Change
	err := s.tx(ctx, func(tx *sql.Tx) error {
		var id int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM changes WHERE type = ? AND kind = 'create'`, e.Type).Scan(&id); err != nil {
			return err
		}
		stored := e.Clone()
		stored.ID = id
		body, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO entities (type, id, body) VALUES (?, ?, ?)`, stored.Type, id, string(body)); err != nil {
			return err
		}
		c, err = appendChange(ctx, tx, wire.KindCreate, stored.Type, id, body)
		c.Entity = stored
		return err
	})
	if err != nil {
		return Change{}, fmt.Errorf("store: create %s: %w", e.Type, err)
	}
	return c, nil
}

func (s *SQLiteStore) Update(ctx context.Context, e *types.Entity) (Change, error) {
	if err := e.Validate(); err != nil {
		return Change{}, err
	}
	if e.IsNew() {
		return Change{}, ErrNoID
	}
	var c Change
	err := s.tx(ctx, func(tx *sql.Tx) error {
		body, err := json.Marshal(e)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE entities SET body = ? WHERE type = ? AND id = ?`, string(body), e.Type, e.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return NotFound(e.Type, e.ID)
		}
		c, err = appendChange(ctx, tx, wire.KindUpdate, e.Type, e.ID, body)
		c.Entity = e.Clone()
		return err
	})
	if err != nil {
		return Change{}, fmt.Errorf("store: update: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, typ string, id int64) (Change, error) {
	var c Change
	err := s.tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE type = ? AND id = ?`, typ, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return NotFound(typ, id)
		}
		c, err = appendChange(ctx, tx, wire.KindDelete, typ, id, nil)
		return err
	})
	if err != nil {
		return Change{}, fmt.Errorf("store: delete: %w", err)
	}
	return c, nil
}

func appendChange(ctx context.Context, tx *sql.Tx, kind wire.UpdateKind, typ string, id int64, body []byte) (Change, error) {
	var b any
	if body != nil {
		b = string(body)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO changes (kind, type, id, body) VALUES (?, ?, ?, ?)`, string(kind), typ, id, b)
	if err != nil {
		return Change{}, err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return Change{}, err
	}
	return Change{Seq: seq, Kind: kind, Type: typ, ID: id}, nil
}

func (s *SQLiteStore) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, typ string, id int64) (*types.Entity, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM entities WHERE type = ? AND id = ?`, typ, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound(typ, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s %d: %w", typ, id, err)
	}
	return decodeEntity(typ, body)
}

func (s *SQLiteStore) List(ctx context.Context, typ string) ([]*types.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM entities WHERE type = ? ORDER BY id`, typ)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", typ, err)
	}
	defer rows.Close()
	var out []*types.Entity
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		e, err := decodeEntity(typ, body)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Changes(ctx context.Context, since int64, typesFilter ...string) ([]Change, error) {
	query := `SELECT seq, kind, type, id, body FROM changes WHERE seq > ?`
	args := []any{since}
	if len(typesFilter) > 0 {
		query += ` AND type IN (?` + strings.Repeat(`, ?`, len(typesFilter)-1) + `)`
		for _, t := range typesFilter {
			args = append(args, t)
		}
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: changes: %w", err)
	}
	defer rows.Close()
	var out []Change
	for rows.Next() {
		var (
			c    Change
			kind string
			body sql.NullString
		)
		if err := rows.Scan(&c.Seq, &kind, &c.Type, &c.ID, &body); err != nil {
			return nil, err
		}
		c.Kind = wire.UpdateKind(kind)
		if body.Valid {
			if c.Entity, err = decodeEntity(c.Type, body.String); err != nil {
				return nil, err
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM changes`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("store: last seq: %w", err)
	}
	return seq, nil
}

func decodeEntity(typ, body string) (*types.Entity, error) {
	e := &types.Entity{}
	if err := e.UnmarshalJSON([]byte(body)); err != nil {
		return nil, fmt.Errorf("store: %s: %w", typ, err)
	}
	e.Type = typ
	return e, nil
}

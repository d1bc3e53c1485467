package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collections (
	name TEXT PRIMARY KEY,
	meta TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL,
	embedding TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);`

// sqliteBackend 单文件持久化，向量以 JSON 存储，检索为全量余弦比较。
type sqliteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend 打开（必要时创建）path 处的数据库。
func NewSQLiteBackend(path string) (Backend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create vector db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// 每个连接都是独立的内存库
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Name() string { return "sqlite" }

func (b *sqliteBackend) Open(ctx context.Context, name string, _ CollectionMeta) (Collection, error) {
	var raw string
	err := b.db.QueryRowContext(ctx, `SELECT meta FROM collections WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, err
	}
	var meta CollectionMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("decode collection meta %s: %w", name, err)
	}
	return &sqliteCollection{db: b.db, name: name, meta: meta}, nil
}

func (b *sqliteBackend) Create(ctx context.Context, name string, meta CollectionMeta) (Collection, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	if _, err := b.db.ExecContext(ctx,
		`INSERT INTO collections(name, meta) VALUES(?, ?) ON CONFLICT(name) DO UPDATE SET meta = excluded.meta`,
		name, string(raw)); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	return &sqliteCollection{db: b.db, name: name, meta: meta}, nil
}

func (b *sqliteBackend) Drop(ctx context.Context, name string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return err
	}
	return tx.Commit()
}

func (b *sqliteBackend) Close() error { return b.db.Close() }

type sqliteCollection struct {
	db   *sql.DB
	name string
	meta CollectionMeta
}

func (c *sqliteCollection) Name() string             { return c.name }
func (c *sqliteCollection) Metadata() CollectionMeta { return c.meta }

func (c *sqliteCollection) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks(collection, id, content, metadata, embedding) VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET content = excluded.content, metadata = excluded.metadata, embedding = excluded.embedding`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return err
		}
		vec, err := json.Marshal(r.Embedding)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.name, r.ID, r.Content, string(meta), string(vec)); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (c *sqliteCollection) Query(ctx context.Context, vector []float32, n int) ([]Hit, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, content, metadata, embedding FROM chunks WHERE collection = ? ORDER BY rowid`, c.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var id, content, metaStr, vecStr string
		if err := rows.Scan(&id, &content, &metaStr, &vecStr); err != nil {
			return nil, err
		}
		h := Hit{ID: id, Content: content}
		if err := json.Unmarshal([]byte(metaStr), &h.Metadata); err != nil {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(vecStr), &vec); err != nil {
			continue
		}
		h.Distance = cosineDistance(vector, vec)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topN(hits, n), nil
}

func (c *sqliteCollection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE collection = ?`, c.name).Scan(&n)
	return n, err
}

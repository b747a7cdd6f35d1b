package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	documentsTable  = "documents"
	uniqueViolation = "23505"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore keeps documents as jsonb rows of a single table keyed by
// (collection, id).
type PostgresStore struct {
	pool *pgxpool.Pool
	cfg  settings
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects, pings and applies the embedded migrations.
func NewPostgresStore(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	cfg := newSettings(opts)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	poolConfig.MaxConns = cfg.maxConns
	poolConfig.MinConns = defaultMinConns
	poolConfig.MaxConnLifetime = defaultConnLife

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(ctx, pool, embeddedMigrations()); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool, cfg: cfg}, nil
}

func (p *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	query, args, err := psql.Select("data").From(documentsTable).
		Where(sq.Eq{"collection": collection, "id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get: %w", err)
	}
	var raw []byte
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decodeDocument(raw)
}

func (p *PostgresStore) List(ctx context.Context, collection string, q Query) ([]Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	query, args, err := listQuery(collection, q).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Record{ID: id, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return out, nil
}

// listQuery renders filters as jsonb containment so the GIN index applies.
func listQuery(collection string, q Query) sq.SelectBuilder {
	b := psql.Select("id", "data").From(documentsTable).Where(sq.Eq{"collection": collection})
	for _, f := range q.Filters {
		raw, err := encodeDocument(Document{f.Field: f.Value})
		if err != nil {
			raw = []byte("{}")
		}
		b = b.Where(sq.Expr("data @> ?::jsonb", string(raw)))
	}
	if q.OrderBy != nil {
		dir := "ASC"
		if q.OrderBy.Desc {
			dir = "DESC"
		}
		b = b.OrderByClause("data -> ? "+dir+" NULLS LAST", q.OrderBy.Field)
	}
	b = b.OrderBy("id ASC")
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}
	return b
}

func (p *PostgresStore) Put(ctx context.Context, collection, id string, fields Document, mode Mode) error {
	query, args, err := putQuery(collection, id, fields, mode, p.cfg.now())
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

func putQuery(collection, id string, fields Document, mode Mode, now time.Time) (string, []any, error) {
	raw, err := encodeDocument(fields)
	if err != nil {
		return "", nil, err
	}
	set := "data = EXCLUDED.data"
	if mode == Merge {
		set = "data = " + documentsTable + ".data || EXCLUDED.data"
	}
	query, args, err := psql.Insert(documentsTable).
		Columns("collection", "id", "data", "version", "updated_at").
		Values(collection, id, sq.Expr("?::jsonb", string(raw)), 1, now).
		Suffix("ON CONFLICT (collection, id) DO UPDATE SET " + set +
			", version = " + documentsTable + ".version + 1, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build put: %w", err)
	}
	return query, args, nil
}

// TransactionalUpdate locks the row with SELECT ... FOR UPDATE. Two callers
// racing to create the same missing row are resolved by retrying on the
// primary key violation.
func (p *PostgresStore) TransactionalUpdate(ctx context.Context, collection, id string, fn UpdateFunc) (Document, error) {
	for attempt := 0; attempt < p.cfg.maxRetries; attempt++ {
		doc, retry, err := p.updateOnce(ctx, collection, id, fn)
		if retry {
			continue
		}
		return doc, err
	}
	return nil, fmt.Errorf("update %s/%s: %w", collection, id, ErrConflict)
}

func (p *PostgresStore) updateOnce(ctx context.Context, collection, id string, fn UpdateFunc) (Document, bool, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query, args, err := psql.Select("data").From(documentsTable).
		Where(sq.Eq{"collection": collection, "id": id}).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build lock: %w", err)
	}

	var (
		raw     []byte
		current Document
		exists  = true
	)
	if err := tx.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, fmt.Errorf("lock %s/%s: %w", collection, id, err)
		}
		exists = false
	}
	if exists {
		if current, err = decodeDocument(raw); err != nil {
			return nil, false, err
		}
	}

	next, err := fn(current, exists)
	if errors.Is(err, ErrSkipWrite) {
		return current, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	encoded, err := encodeDocument(next)
	if err != nil {
		return nil, false, err
	}

	var b sq.Sqlizer
	if exists {
		b = psql.Update(documentsTable).
			Set("data", sq.Expr("?::jsonb", string(encoded))).
			Set("version", sq.Expr("version + 1")).
			Set("updated_at", p.cfg.now()).
			Where(sq.Eq{"collection": collection, "id": id})
	} else {
		b = psql.Insert(documentsTable).
			Columns("collection", "id", "data", "version", "updated_at").
			Values(collection, id, sq.Expr("?::jsonb", string(encoded)), 1, p.cfg.now())
	}
	query, args, err = b.ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build write: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("write %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit %s/%s: %w", collection, id, err)
	}
	doc, err := decodeDocument(encoded)
	return doc, false, err
}

func (p *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	query, args, err := psql.Delete(documentsTable).
		Where(sq.Eq{"collection": collection, "id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

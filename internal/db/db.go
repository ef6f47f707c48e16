package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docqa/internal/config"
	"docqa/internal/helper"
	"docqa/internal/models"
)

type Document struct {
	bun.BaseModel  `bun:"table:documents,alias:d"`
	ID             string          `bun:"id,pk,type:uuid"`
	Content        string          `bun:"content,notnull"`
	Embedding      pgvector.Vector `bun:"embedding,notnull"`
	SourceFilename string          `bun:"source_filename,notnull"`
	PageNumber     *int            `bun:"page_number"`
	ChunkID        int             `bun:"chunk_id,notnull"`
	CreatedAt      time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	Score          float32         `bun:"score,scanonly"`
}

func (d *Document) chunk() models.Chunk {
	return models.Chunk{
		Text:   d.Content,
		Source: d.SourceFilename,
		Page:   d.PageNumber,
		Index:  d.ChunkID,
	}
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a pool with either the bun pgdriver or lib/pq.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is required")
	}
	switch cfg.Driver {
	case "pq":
		return sql.Open("postgres", cfg.DSN)
	case "pgdriver", "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Store keeps chunk records in a pgvector table.
type Store struct {
	db         *bun.DB
	table      string
	dimensions int
}

// NewStore connects, pings and makes sure the extension and table exist.
func NewStore(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: NewDB(sqldb, cfg.Debug), table: cfg.Table, dimensions: cfg.Dimensions}
	if err := s.db.PingContext(ctx); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if err := s.InitDB(ctx); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) InitDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS ? (
	id uuid PRIMARY KEY,
	content text NOT NULL,
	embedding vector(?) NOT NULL,
	source_filename text NOT NULL,
	page_number integer,
	chunk_id integer NOT NULL,
	created_at timestamptz NOT NULL DEFAULT current_timestamp
)`, bun.Ident(s.table), s.dimensions)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// Add inserts all records in a single transaction.
func (s *Store) Add(ctx context.Context, records []models.ChunkEmbedding) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]Document, 0, len(records))
	for _, r := range records {
		if len(r.Embedding) != s.dimensions {
			return fmt.Errorf("embedding has %d dimensions, table %s expects %d", len(r.Embedding), s.table, s.dimensions)
		}
		id, err := helper.GenerateUUID()
		if err != nil {
			return err
		}
		docs = append(docs, Document{
			ID:             id,
			Content:        r.Text,
			Embedding:      pgvector.NewVector(r.Embedding),
			SourceFilename: r.Source,
			PageNumber:     r.Page,
			ChunkID:        r.Index,
		})
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&docs).
			ModelTableExpr("? AS d", bun.Ident(s.table)).
			ExcludeColumn("created_at").
			Exec(ctx)
		return err
	})
}

// Search orders by cosine distance and reports similarity as 1 - distance.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]models.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	query := pgvector.NewVector(vector)

	var docs []Document
	err := s.db.NewSelect().
		Model(&docs).
		ModelTableExpr("? AS d", bun.Ident(s.table)).
		Column("id", "content", "source_filename", "page_number", "chunk_id").
		ColumnExpr("1 - (d.embedding <=> ?) AS score", query).
		OrderExpr("d.embedding <=> ?", query).
		OrderExpr("d.created_at, d.chunk_id").
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]models.Match, 0, len(docs))
	for i := range docs {
		matches = append(matches, models.Match{Chunk: docs[i].chunk(), Score: docs[i].Score})
	}
	return matches, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().
		Model((*Document)(nil)).
		ModelTableExpr("? AS d", bun.Ident(s.table)).
		Count(ctx)
}

// Reset removes every row but keeps the table.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "TRUNCATE TABLE ?", bun.Ident(s.table))
	return err
}

// DropDocuments removes the table itself.
func (s *Store) DropDocuments(ctx context.Context) error {
	_, err := s.db.NewDropTable().
		Model((*Document)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		IfExists().
		Exec(ctx)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

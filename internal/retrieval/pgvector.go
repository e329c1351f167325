package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"tunarag/internal/models"
)

// Embedder produces query embeddings. The embedding task type must match
// the query side of the asymmetric pair the index was built with.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type searchRow struct {
	Content  string
	Metadata []byte
	Score    float64
}

// querier is the row-level seam between the retriever and the database,
// so search behavior is testable without a live pool.
type querier interface {
	search(ctx context.Context, vec pgvector.Vector, limit int) ([]searchRow, error)
}

type passageMetadata struct {
	FileName   string `json:"file_name"`
	SourceType string `json:"source_type"`
}

// PgVector retrieves passages from a pre-built pgvector index by cosine
// similarity. The index itself is populated offline; this side only reads.
type PgVector struct {
	embedder Embedder
	queries  querier
}

// NewPool opens a pgx pool with pgvector types registered on every connection.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewPgVector constructs the retriever over an existing pool.
func NewPgVector(pool *pgxpool.Pool, table string, embedder Embedder) (*PgVector, error) {
	if pool == nil {
		return nil, errors.New("pool required")
	}
	if embedder == nil {
		return nil, errors.New("embedder required")
	}
	if table == "" {
		table = "documents"
	}
	return &PgVector{
		embedder: embedder,
		queries:  &pgQuerier{pool: pool, table: table},
	}, nil
}

// Retrieve embeds the query and returns the topK most similar passages,
// highest similarity first. Scores are cosine similarity in [0, 1].
func (r *PgVector) Retrieve(ctx context.Context, query string, topK int) ([]models.Passage, error) {
	if topK <= 0 {
		topK = 10
	}
	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	rows, err := r.queries.search(ctx, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	passages := make([]models.Passage, 0, len(rows))
	for _, row := range rows {
		p := models.Passage{Text: row.Content, Score: row.Score}
		if len(row.Metadata) > 0 {
			var meta passageMetadata
			if err := json.Unmarshal(row.Metadata, &meta); err != nil {
				log.Printf("retrieval: decode passage metadata failed: %v", err)
			} else {
				p.FileName = meta.FileName
				p.SourceType = meta.SourceType
			}
		}
		passages = append(passages, p)
	}
	return passages, nil
}

type pgQuerier struct {
	pool  *pgxpool.Pool
	table string
}

func (q *pgQuerier) search(ctx context.Context, vec pgvector.Vector, limit int) ([]searchRow, error) {
	sql := fmt.Sprintf(
		`SELECT content, metadata, 1 - (embedding <=> $1) AS score FROM %s ORDER BY embedding <=> $1 LIMIT $2`,
		q.table,
	)
	rows, err := q.pool.Query(ctx, sql, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []searchRow
	for rows.Next() {
		var row searchRow
		if err := rows.Scan(&row.Content, &row.Metadata, &row.Score); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Package archive persists finished analyses to Postgres with pgvector
// embeddings, giving a library-wide "find footage like this" search across
// every batch ever run. The archive is an optional sink: a clip's enrichment
// never fails because the database is down.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/metafootage/internal/models"
)

// embeddingDim matches nomic-embed-text, the default local embedding model.
const embeddingDim = 768

// Embedder turns text into a vector. A nil Embedder stores analyses without
// embeddings; they remain queryable by SQL, just not by similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Archive is a Postgres-backed store of analysis results.
type Archive struct {
	pool     *pgxpool.Pool
	embedder Embedder
	logger   *slog.Logger
}

// SearchResult is one similarity hit.
type SearchResult struct {
	ClipName   string
	SourcePath string
	ShortDesc  string
	Similarity float64
}

// Open connects to Postgres, verifies the connection, and ensures the
// schema exists.
func Open(ctx context.Context, dsn string, embedder Embedder, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	a := &Archive{pool: pool, embedder: embedder, logger: logger}
	if err := a.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *Archive) initSchema(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("archive: vector extension: %w", err)
	}
	_, err = a.pool.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS clips (
            id SERIAL PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            source_path TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(source_path)
        );

        CREATE TABLE IF NOT EXISTS analyses (
            id SERIAL PRIMARY KEY,
            clip_id INTEGER REFERENCES clips(id) ON DELETE CASCADE,
            fingerprint VARCHAR(64) NOT NULL,
            result JSONB NOT NULL,
            embedding vector(%d),
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(clip_id, fingerprint)
        );

        CREATE INDEX IF NOT EXISTS idx_analyses_clip_id ON analyses(clip_id);
    `, embeddingDim))
	if err != nil {
		return fmt.Errorf("archive: create schema: %w", err)
	}
	return nil
}

// Store upserts a clip and its analysis. Re-running an unchanged clip
// refreshes the existing row instead of piling up duplicates.
func (a *Archive) Store(ctx context.Context, clipName, sourcePath, fingerprint string, result models.AnalysisResult) error {
	var clipID int
	err := a.pool.QueryRow(ctx,
		`INSERT INTO clips (name, source_path, created_at)
         VALUES ($1, $2, $3)
         ON CONFLICT (source_path) DO UPDATE SET name = EXCLUDED.name
         RETURNING id`,
		clipName, sourcePath, time.Now()).Scan(&clipID)
	if err != nil {
		return fmt.Errorf("archive: upsert clip: %w", err)
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("archive: encode result: %w", err)
	}

	var embedding any
	if a.embedder != nil {
		vec, err := a.embedder.Embed(ctx, embeddingText(clipName, result))
		if err != nil {
			// Keep the row; similarity search just won't see it.
			a.logger.Warn("embedding failed, archiving without vector", "clip", clipName, "err", err)
		} else {
			embedding = pgvector.NewVector(vec)
		}
	}

	_, err = a.pool.Exec(ctx,
		`INSERT INTO analyses (clip_id, fingerprint, result, embedding, created_at)
         VALUES ($1, $2, $3, $4, $5)
         ON CONFLICT (clip_id, fingerprint) DO UPDATE
         SET result = EXCLUDED.result, embedding = EXCLUDED.embedding, created_at = EXCLUDED.created_at`,
		clipID, fingerprint, resultJSON, embedding, time.Now())
	if err != nil {
		return fmt.Errorf("archive: store analysis: %w", err)
	}
	return nil
}

// SearchSimilar returns the clips whose analyses sit closest to the query
// text in embedding space.
func (a *Archive) SearchSimilar(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if a.embedder == nil {
		return nil, fmt.Errorf("archive: similarity search needs an embedder")
	}
	queryVec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("archive: embed query: %w", err)
	}

	rows, err := a.pool.Query(ctx,
		`SELECT c.name, c.source_path, COALESCE(an.result->>'short_desc', ''),
                1 - (an.embedding <=> $1) AS similarity
         FROM analyses an
         JOIN clips c ON an.clip_id = c.id
         WHERE an.embedding IS NOT NULL
         ORDER BY an.embedding <=> $1
         LIMIT $2`,
		pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, fmt.Errorf("archive: search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ClipName, &r.SourcePath, &r.ShortDesc, &r.Similarity); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// LookupByFingerprint returns the archived result for a fingerprint, for
// inspection tooling.
func (a *Archive) LookupByFingerprint(ctx context.Context, fingerprint string) (models.AnalysisResult, bool, error) {
	var resultJSON []byte
	err := a.pool.QueryRow(ctx,
		"SELECT result FROM analyses WHERE fingerprint = $1", fingerprint).Scan(&resultJSON)
	if err == pgx.ErrNoRows {
		return models.AnalysisResult{}, false, nil
	}
	if err != nil {
		return models.AnalysisResult{}, false, fmt.Errorf("archive: lookup: %w", err)
	}
	var result models.AnalysisResult
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return models.AnalysisResult{}, false, fmt.Errorf("archive: decode: %w", err)
	}
	return result, true, nil
}

// embeddingText flattens the searchable parts of a result into one string.
func embeddingText(clipName string, r models.AnalysisResult) string {
	parts := []string{clipName, r.ShortDesc, r.LongDesc, r.Setting, r.Emotion}
	parts = append(parts, r.Keywords...)
	parts = append(parts, r.Subjects...)
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/pkg/dbutil"
	"go.uber.org/zap"
)

const (
	chunkTable             = "rag_chunks"
	defaultInsertBatchSize = 100
)

// filterColumns maps metadata filter keys to table columns.
var filterColumns = map[string]string{
	model.MetaUserID: "user_id",
	model.MetaSource: "source",
	model.MetaType:   "chunk_type",
}

type pgvectorConfig struct {
	BatchSize int `json:"batch_size"`
}

type pgvectorStore struct {
	db        *sql.DB
	batchSize int
}

func NewPgvector(db *sql.DB, batchSize int) Store {
	if batchSize <= 0 {
		batchSize = defaultInsertBatchSize
	}
	return &pgvectorStore{db: db, batchSize: batchSize}
}

// Add inserts chunks in multi-row statements. Every statement commits on
// its own, so a failure leaves the earlier batches persisted.
func (s *pgvectorStore) Add(ctx context.Context, chunks []model.Chunk) (int, error) {
	persisted := 0
	now := time.Now().Unix()
	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		rows := make([]map[string]interface{}, 0, end-start)
		for _, chunk := range chunks[start:end] {
			ctime := chunk.Ctime
			if ctime == 0 {
				ctime = now
			}
			rows = append(rows, map[string]interface{}{
				"id":         chunk.ID,
				"user_id":    chunk.Metadata.UserID,
				"source":     chunk.Metadata.Source,
				"chunk_type": string(chunk.Metadata.Type),
				"content":    chunk.Text,
				"embedding":  pgvector.NewVector(chunk.Embedding),
				"ctime":      ctime,
			})
		}
		sqlStr, args, err := builder.BuildInsert(chunkTable, rows)
		if err != nil {
			return persisted, err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
			return persisted, fmt.Errorf("insert chunks: %w", err)
		}
		persisted += end - start
	}
	logutil.GetLogger(ctx).Debug("pgvector add", zap.Int("chunks", persisted))
	return persisted, nil
}

func (s *pgvectorStore) Search(ctx context.Context, vec []float32, k int, filter map[string]string) ([]model.SearchResult, error) {
	if k <= 0 {
		return []model.SearchResult{}, nil
	}
	query, args, err := buildSearchQuery(vec, k, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()
	out := make([]model.SearchResult, 0, k)
	for rows.Next() {
		var (
			item      model.SearchResult
			chunkType string
			embedding pgvector.Vector
		)
		if err := rows.Scan(&item.Chunk.ID, &item.Chunk.Metadata.UserID, &item.Chunk.Metadata.Source,
			&chunkType, &item.Chunk.Text, &embedding, &item.Chunk.Ctime, &item.Score); err != nil {
			return nil, err
		}
		item.Chunk.Metadata.Type = model.ChunkType(chunkType)
		item.Chunk.Embedding = embedding.Slice()
		out = append(out, item)
	}
	return out, rows.Err()
}

// buildSearchQuery renders a cosine distance query. Filter keys are sorted so
// the statement text is stable for a given key set.
func buildSearchQuery(vec []float32, k int, filter map[string]string) (string, []interface{}, error) {
	args := []interface{}{pgvector.NewVector(vec)}
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	conds := make([]string, 0, len(keys))
	for _, key := range keys {
		column, ok := filterColumns[key]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter key: %s", key)
		}
		args = append(args, filter[key])
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	var sb strings.Builder
	sb.WriteString("SELECT id, user_id, source, chunk_type, content, embedding, ctime, 1 - (embedding <=> $1) AS score FROM ")
	sb.WriteString(chunkTable)
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	args = append(args, k)
	sb.WriteString(fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args)))
	return sb.String(), args, nil
}

// Close is a no-op, the connection belongs to the caller.
func (s *pgvectorStore) Close() error {
	return nil
}

func createPgvectorFactory(args interface{}, deps Deps) (Store, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("pgvector store requires a database connection")
	}
	cfg := &pgvectorConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return NewPgvector(deps.DB, cfg.BatchSize), nil
}

func init() {
	Register("pgvector", createPgvectorFactory)
}

package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/nikhilbhutani/pdfmate/internal/database"
)

// PgVectorStore keeps vectors in the document_vectors table.
type PgVectorStore struct {
	db *sql.DB
}

func NewPgVectorStore(db *sql.DB) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) Name() string { return "vector store" }

func (s *PgVectorStore) Upsert(ctx context.Context, namespace string, docs []Document) error {
	return database.WithTx(ctx, s.db, nil, func(ctx context.Context, tx database.DBTX) error {
		for _, d := range docs {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO document_vectors (id, namespace, page, content, embedding)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
				PointID(namespace, d.Page), namespace, d.Page, d.Text, pgvector.NewVector(d.Vector),
			)
			if err != nil {
				return fmt.Errorf("upsert page %d: %w", d.Page, err)
			}
		}
		return nil
	})
}

func (s *PgVectorStore) DeleteNamespace(ctx context.Context, namespace string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM document_vectors WHERE namespace = $1`, namespace); err != nil {
		return fmt.Errorf("delete namespace %s: %w", namespace, err)
	}
	return nil
}

func (s *PgVectorStore) Search(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		k = 4
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT page, content, 1 - (embedding <=> $1) AS score
		 FROM document_vectors
		 WHERE namespace = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(vector), namespace, k,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Page, &m.Text, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

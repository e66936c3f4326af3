package vectorstore

import (
	"context"
	"strconv"

	"github.com/google/uuid"
)

// Document is one embedded page.
type Document struct {
	Page   int
	Text   string
	Vector []float32
}

type Match struct {
	Page  int     `json:"page"`
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

// VectorStore partitions vectors by namespace; a file's namespace is its id.
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, docs []Document) error
	DeleteNamespace(ctx context.Context, namespace string) error
	Search(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error)
	Name() string
}

// PointID is stable per (namespace, page), so re-upserting a page overwrites it.
func PointID(namespace string, page int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace+"#"+strconv.Itoa(page))).String()
}

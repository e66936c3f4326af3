package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/nikhilbhutani/pdfmate/internal/config"
)

const namespaceKey = "namespace"

type qdrantAPI interface {
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
}

// QdrantStore keeps every file in one collection, partitioned by a
// "namespace" payload field.
type QdrantStore struct {
	client     qdrantAPI
	collection string
}

func NewQdrantStore(cfg config.VectorConfig) (*QdrantStore, *qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: cfg.QdrantTLS,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &QdrantStore{client: client, collection: cfg.Collection}, client, nil
}

func (s *QdrantStore) Name() string { return "vector store" }

// EnsureCollection creates the collection with cosine distance if missing.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimensions int) error {
	ok, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", s.collection, err)
	}
	if ok {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	return nil
}

func namespaceFilter(namespace string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(namespaceKey, namespace)},
	}
}

func (s *QdrantStore) Upsert(ctx context.Context, namespace string, docs []Document) error {
	points := make([]*qdrant.PointStruct, len(docs))
	for i, d := range docs {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(namespace, d.Page)),
			Vectors: qdrant.NewVectors(d.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				namespaceKey: namespace,
				"page":       d.Page,
				"text":       d.Text,
			}),
		}
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

func (s *QdrantStore) DeleteNamespace(ctx context.Context, namespace string) error {
	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelectorFilter(namespaceFilter(namespace)),
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("delete namespace %s: %w", namespace, err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		k = 4
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         namespaceFilter(namespace),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query namespace %s: %w", namespace, err)
	}

	out := make([]Match, 0, len(points))
	for _, p := range points {
		out = append(out, Match{
			Page:  int(p.GetPayload()["page"].GetIntegerValue()),
			Text:  p.GetPayload()["text"].GetStringValue(),
			Score: p.GetScore(),
		})
	}
	return out, nil
}

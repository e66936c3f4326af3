package vectorstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointIDStable(t *testing.T) {
	assert.Equal(t, PointID("f1", 2), PointID("f1", 2))
	assert.NotEqual(t, PointID("f1", 2), PointID("f1", 3))
	assert.NotEqual(t, PointID("f1", 2), PointID("f2", 2))
}

func TestPgVectorUpsertInTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_vectors")).
		WithArgs(PointID("f1", 1), "f1", 1, "one", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_vectors")).
		WithArgs(PointID("f1", 3), "f1", 3, "three", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	s := NewPgVectorStore(db)
	err = s.Upsert(context.Background(), "f1", []Document{
		{Page: 1, Text: "one", Vector: []float32{1, 0}},
		{Page: 3, Text: "three", Vector: []float32{0, 1}},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgVectorUpsertRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_vectors")).WillReturnError(errors.New("dimension mismatch"))
	mock.ExpectRollback()

	err = NewPgVectorStore(db).Upsert(context.Background(), "f1", []Document{{Page: 1, Vector: []float32{1}}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgVectorDeleteAndSearch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM document_vectors WHERE namespace = $1")).
		WithArgs("f1").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY embedding <=> $1")).
		WithArgs(sqlmock.AnyArg(), "f1", 4).
		WillReturnRows(sqlmock.NewRows([]string{"page", "content", "score"}).
			AddRow(2, "second", 0.91).
			AddRow(1, "first", 0.55))

	s := NewPgVectorStore(db)
	require.NoError(t, s.DeleteNamespace(context.Background(), "f1"))

	matches, err := s.Search(context.Background(), "f1", []float32{1, 0}, 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 2, matches[0].Page)
	assert.InDelta(t, 0.91, matches[0].Score, 1e-6)
	require.NoError(t, mock.ExpectationsWereMet())
}

type fakeQdrant struct {
	exists  bool
	created *qdrant.CreateCollection
	upsert  *qdrant.UpsertPoints
	deleted *qdrant.DeletePoints
	query   *qdrant.QueryPoints
	result  []*qdrant.ScoredPoint
	err     error
}

func (f *fakeQdrant) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.upsert = req
	return &qdrant.UpdateResult{}, f.err
}

func (f *fakeQdrant) Delete(_ context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error) {
	f.deleted = req
	return &qdrant.UpdateResult{}, f.err
}

func (f *fakeQdrant) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.query = req
	return f.result, f.err
}

func (f *fakeQdrant) CollectionExists(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeQdrant) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.created = req
	return nil
}

func TestQdrantUpsertCarriesNamespacePayload(t *testing.T) {
	fake := &fakeQdrant{}
	s := &QdrantStore{client: fake, collection: "pdfmate"}

	err := s.Upsert(context.Background(), "f1", []Document{{Page: 2, Text: "hello", Vector: []float32{0.1, 0.2}}})
	require.NoError(t, err)
	require.Len(t, fake.upsert.Points, 1)

	p := fake.upsert.Points[0]
	assert.Equal(t, PointID("f1", 2), p.GetId().GetUuid())
	assert.Equal(t, "f1", p.GetPayload()["namespace"].GetStringValue())
	assert.Equal(t, int64(2), p.GetPayload()["page"].GetIntegerValue())
	assert.True(t, fake.upsert.GetWait())
}

func TestQdrantDeleteFiltersByNamespace(t *testing.T) {
	fake := &fakeQdrant{}
	s := &QdrantStore{client: fake, collection: "pdfmate"}

	require.NoError(t, s.DeleteNamespace(context.Background(), "f9"))

	cond := fake.deleted.GetPoints().GetFilter().GetMust()[0].GetField()
	assert.Equal(t, "namespace", cond.GetKey())
	assert.Equal(t, "f9", cond.GetMatch().GetKeyword())

	fake.err = errors.New("unavailable")
	assert.Error(t, s.DeleteNamespace(context.Background(), "f9"))
}

func TestQdrantSearchMapsPayload(t *testing.T) {
	fake := &fakeQdrant{result: []*qdrant.ScoredPoint{{
		Score:   0.8,
		Payload: qdrant.NewValueMap(map[string]any{"page": 4, "text": "four"}),
	}}}
	s := &QdrantStore{client: fake, collection: "pdfmate"}

	matches, err := s.Search(context.Background(), "f1", []float32{1}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, Match{Page: 4, Text: "four", Score: 0.8}, matches[0])
	assert.Equal(t, uint64(3), fake.query.GetLimit())
}

func TestQdrantEnsureCollection(t *testing.T) {
	fake := &fakeQdrant{}
	s := &QdrantStore{client: fake, collection: "pdfmate"}

	require.NoError(t, s.EnsureCollection(context.Background(), 1536))
	require.NotNil(t, fake.created)
	assert.Equal(t, uint64(1536), fake.created.GetVectorsConfig().GetParams().GetSize())

	fake.created, fake.exists = nil, true
	require.NoError(t, s.EnsureCollection(context.Background(), 1536))
	assert.Nil(t, fake.created)
}

package deletion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
	"github.com/nikhilbhutani/pdfmate/internal/models"
	"github.com/nikhilbhutani/pdfmate/internal/store"
	"github.com/nikhilbhutani/pdfmate/internal/vectorstore"
)

// calls records the order in which systems were touched.
type calls []string

type fakeObjects struct {
	log   *calls
	blobs map[string]bool
	err   error
}

func (o *fakeObjects) Fetch(context.Context, string) ([]byte, error) { return nil, nil }
func (o *fakeObjects) Delete(_ context.Context, key string) error {
	*o.log = append(*o.log, "object")
	if o.err != nil {
		return o.err
	}
	if !o.blobs[key] {
		return apperr.New(apperr.NotFound, "object %s not found", key)
	}
	delete(o.blobs, key)
	return nil
}
func (o *fakeObjects) PublicURL(key string) string { return key }
func (o *fakeObjects) PresignUpload(context.Context, string, string) (string, error) {
	return "", nil
}
func (o *fakeObjects) Name() string { return "object store" }

type fakeVectors struct {
	log        *calls
	namespaces map[string]bool
	err        error
}

func (v *fakeVectors) Upsert(context.Context, string, []vectorstore.Document) error { return nil }
func (v *fakeVectors) DeleteNamespace(_ context.Context, ns string) error {
	*v.log = append(*v.log, "vector")
	if v.err != nil {
		return v.err
	}
	delete(v.namespaces, ns)
	return nil
}
func (v *fakeVectors) Search(context.Context, string, []float32, int) ([]vectorstore.Match, error) {
	return nil, nil
}
func (v *fakeVectors) Name() string { return "vector store" }

// failingFiles is a working record store whose Delete always fails.
type failingFiles struct {
	store.Files
	log *calls
}

func (f failingFiles) Delete(context.Context, string) error {
	*f.log = append(*f.log, "record")
	return errors.New("connection reset")
}

type fixture struct {
	log     calls
	st      *store.Store
	objects *fakeObjects
	vectors *fakeVectors
	coord   *Coordinator
	file    *models.File
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{st: store.NewMemory()}
	fx.objects = &fakeObjects{log: &fx.log, blobs: map[string]bool{"k1": true}}
	fx.vectors = &fakeVectors{log: &fx.log, namespaces: map[string]bool{"f1": true}}
	fx.coord = NewCoordinator(fx.st.Files, fx.objects, fx.vectors)

	ctx := context.Background()
	owner, fileID := "u1", "f1"
	fx.file = &models.File{ID: fileID, UserID: &owner, Key: "k1", Name: "report.pdf"}
	require.NoError(t, fx.st.Files.Create(ctx, fx.file))
	for _, id := range []string{"m1", "m2"} {
		require.NoError(t, fx.st.Messages.Create(ctx, &models.Message{ID: id, FileID: &fileID, UserID: &owner, Text: "hi"}))
	}
	return fx
}

func TestPurgeUnknownFileTouchesNothing(t *testing.T) {
	fx := newFixture(t)

	res := fx.coord.PurgeEverywhere(context.Background(), "nope")
	assert.Equal(t, "No such File", res.Title)
	assert.Equal(t, "No file with Id: nope", res.Description)
	assert.False(t, res.OK)
	assert.Empty(t, fx.log)
}

func TestPurgeVectorFailureStopsSaga(t *testing.T) {
	fx := newFixture(t)
	fx.vectors.err = errors.New("index unavailable")

	res := fx.coord.PurgeEverywhere(context.Background(), "f1")
	assert.Equal(t, "Error Deleting", res.Title)
	assert.Equal(t, "Error Deleting: f1 from vector store", res.Description)
	assert.Equal(t, "vector store", res.System)
	assert.Equal(t, calls{"vector"}, fx.log)

	_, err := fx.st.Files.Get(context.Background(), "f1")
	assert.NoError(t, err)
	assert.True(t, fx.objects.blobs["k1"])
}

func TestPurgeObjectFailureKeepsRecords(t *testing.T) {
	fx := newFixture(t)
	fx.objects.err = errors.New("403")

	res := fx.coord.PurgeEverywhere(context.Background(), "f1")
	assert.Equal(t, "object store", res.System)
	assert.Equal(t, calls{"vector", "object"}, fx.log)

	n, err := fx.st.Messages.Count(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPurgeRecordFailureNamesDatabase(t *testing.T) {
	fx := newFixture(t)
	coord := NewCoordinator(failingFiles{Files: fx.st.Files, log: &fx.log}, fx.objects, fx.vectors)

	res := coord.PurgeEverywhere(context.Background(), "f1")
	assert.False(t, res.OK)
	assert.Equal(t, "Error Deleting", res.Title)
	assert.Equal(t, "database", res.System)
	assert.Equal(t, "Error Deleting: f1 from database", res.Description)
	assert.Equal(t, calls{"vector", "object", "record"}, fx.log)

	assert.Empty(t, fx.vectors.namespaces)
	assert.Empty(t, fx.objects.blobs)
	_, err := fx.st.Files.Get(context.Background(), "f1")
	assert.NoError(t, err)
}

func TestPurgeSuccessRemovesEverything(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	res := fx.coord.PurgeEverywhere(ctx, "f1")
	assert.True(t, res.OK)
	assert.Equal(t, "Deleted Successfully", res.Title)
	assert.Contains(t, res.Description, "report.pdf")
	assert.Equal(t, calls{"vector", "object"}, fx.log)

	_, err := fx.st.Files.Get(ctx, "f1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	n, err := fx.st.Messages.Count(ctx, "f1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, fx.objects.blobs)
	assert.Empty(t, fx.vectors.namespaces)
}

func TestDeleteOwned(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.coord.DeleteOwned(ctx, "intruder", "f1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, fx.log)

	f, err := fx.coord.DeleteOwned(ctx, "u1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", f.Name)
	assert.Equal(t, calls{"object", "vector"}, fx.log)

	_, err = fx.st.Files.Get(ctx, "f1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteOwnedNamesFailingSystem(t *testing.T) {
	fx := newFixture(t)
	fx.objects.blobs = map[string]bool{}

	_, err := fx.coord.DeleteOwned(context.Background(), "u1", "f1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrExternal)
	assert.Equal(t, "object store", apperr.SystemOf(err))
	assert.Equal(t, calls{"object"}, fx.log)
}

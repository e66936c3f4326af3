package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
	"github.com/nikhilbhutani/pdfmate/internal/models"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

var fileCols = []string{"id", "user_id", "key", "url", "name", "upload_status", "created_at", "updated_at"}
var msgCols = []string{"id", "file_id", "user_id", "is_user_message", "text", "created_at", "updated_at"}

func strPtr(s string) *string { return &s }

func TestFilesCreate(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO files")).
		WithArgs("f1", "u1", "k1", "https://cdn/k1", "a.pdf", "PROCESSING", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	f := &models.File{ID: "f1", UserID: strPtr("u1"), Key: "k1", URL: "https://cdn/k1", Name: "a.pdf"}
	require.NoError(t, s.Files.Create(context.Background(), f))
	assert.Equal(t, models.StatusProcessing, f.UploadStatus)
	assert.False(t, f.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilesCreateDuplicateKeyIsConflict(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO files")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "files_key_unique"})

	err := s.Files.Create(context.Background(), &models.File{ID: "f2", Key: "k1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilesGetNotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM files WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Files.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilesGetByKey(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM files WHERE key = $1")).
		WithArgs("k1").
		WillReturnRows(sqlmock.NewRows(fileCols).AddRow("f1", "u1", "k1", "https://cdn/k1", "a.pdf", "SUCCESS", now, now))

	f, err := s.Files.GetByKey(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, "f1", f.ID)
	assert.Equal(t, models.StatusSuccess, f.UploadStatus)
	assert.True(t, f.OwnedBy("u1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilesSetStatusIsConditional(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND upload_status = 'PROCESSING'")).
		WithArgs("f1", "SUCCESS").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND upload_status = 'PROCESSING'")).
		WithArgs("f1", "FAILED").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.Files.SetStatus(ctx, "f1", models.StatusSuccess)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Files.SetStatus(ctx, "f1", models.StatusFailed)
	require.NoError(t, err)
	assert.False(t, ok, "terminal file must not transition again")

	_, err = s.Files.SetStatus(ctx, "f1", models.StatusProcessing)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilesDeleteRemovesMessagesInTx(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM messages WHERE file_id = $1")).
		WithArgs("f1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM files WHERE id = $1")).
		WithArgs("f1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Files.Delete(context.Background(), "f1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilesDeleteMissingRollsBack(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM messages")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM files")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Files.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilesCountCreatedBetween(t *testing.T) {
	s, mock := newMock(t)
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM files WHERE user_id = $1")).
		WithArgs("u1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.Files.CountCreatedBetween(context.Background(), "u1", from, to)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessagesPageFetchesLimitPlusOne(t *testing.T) {
	s, mock := newMock(t)
	t0 := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(msgCols).
		AddRow("m3", "f1", "u1", true, "c", t0.Add(3*time.Second), t0).
		AddRow("m2", "f1", "u1", false, "b", t0.Add(2*time.Second), t0).
		AddRow("m1", "f1", "u1", true, "a", t0.Add(time.Second), t0)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC LIMIT $2")).
		WithArgs("f1", 3).
		WillReturnRows(rows)

	page, err := s.Messages.Page(context.Background(), "f1", 2, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "m3", page.Messages[0].ID)
	assert.Equal(t, "m1", page.NextCursor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessagesPageWithCursor(t *testing.T) {
	s, mock := newMock(t)
	t0 := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("(created_at, id) <= (SELECT created_at, id FROM messages WHERE id = $2 AND file_id = $1)")).
		WithArgs("f1", "m1", 3).
		WillReturnRows(sqlmock.NewRows(msgCols).AddRow("m1", "f1", "u1", true, "a", t0, t0))

	page, err := s.Messages.Page(context.Background(), "f1", 2, "m1")
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Empty(t, page.NextCursor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessagesPageForeignCursorIsEmpty(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $2 AND file_id = $1")).
		WithArgs("f1", "other-file-msg", 3).
		WillReturnRows(sqlmock.NewRows(msgCols))

	page, err := s.Messages.Page(context.Background(), "f1", 2, "other-file-msg")
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.Empty(t, page.NextCursor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersEnsure(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO NOTHING")).
		WithArgs("u1", "a@b.c").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO NOTHING")).
		WithArgs("u1", "a@b.c").WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := s.Users.Ensure(ctx, "u1", "a@b.c")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Users.Ensure(ctx, "u1", "a@b.c")
	require.NoError(t, err)
	assert.False(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersRenewSubscriptionUnknown(t *testing.T) {
	s, mock := newMock(t)
	end := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("WHERE stripe_subscription_id = $1")).
		WithArgs("sub_1", "price_1", end).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Users.RenewSubscription(context.Background(), "sub_1", "price_1", end)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

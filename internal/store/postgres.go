package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
	"github.com/nikhilbhutani/pdfmate/internal/database"
	"github.com/nikhilbhutani/pdfmate/internal/models"
)

const uniqueViolation = "23505"

func NewPostgres(db *sql.DB) *Store {
	return &Store{
		Users:    &pgUsers{db: db},
		Files:    &pgFiles{db: db},
		Messages: &pgMessages{db: db},
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

type pgUsers struct {
	db database.DBTX
}

func (r *pgUsers) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, stripe_customer_id, stripe_subscription_id, stripe_price_id, stripe_current_period_end
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.StripeCustomerID, &u.StripeSubscriptionID, &u.StripePriceID, &u.StripeCurrentPeriodEnd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *pgUsers) Ensure(ctx context.Context, id, email string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, id, email)
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}
	return n == 1, nil
}

func (r *pgUsers) SetSubscription(ctx context.Context, userID string, sub models.Subscription) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET stripe_customer_id = $2, stripe_subscription_id = $3,
		        stripe_price_id = $4, stripe_current_period_end = $5
		 WHERE id = $1`,
		userID, sub.CustomerID, sub.SubscriptionID, sub.PriceID, sub.CurrentPeriodEnd)
	if err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	return expectOne(res, "user "+userID)
}

func (r *pgUsers) RenewSubscription(ctx context.Context, subscriptionID, priceID string, periodEnd time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET stripe_price_id = $2, stripe_current_period_end = $3
		 WHERE stripe_subscription_id = $1`,
		subscriptionID, priceID, periodEnd)
	if err != nil {
		return fmt.Errorf("renew subscription: %w", err)
	}
	return expectOne(res, "subscription "+subscriptionID)
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "%s not found", what)
	}
	return nil
}

type pgFiles struct {
	db *sql.DB
}

const fileColumns = `id, user_id, key, url, name, upload_status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*models.File, error) {
	var f models.File
	if err := row.Scan(&f.ID, &f.UserID, &f.Key, &f.URL, &f.Name, &f.UploadStatus, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *pgFiles) Create(ctx context.Context, f *models.File) error {
	now := time.Now().UTC()
	f.UploadStatus = models.StatusProcessing
	f.CreatedAt, f.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO files (`+fileColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.UserID, f.Key, f.URL, f.Name, f.UploadStatus, f.CreatedAt, f.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.New(apperr.Conflict, "file with key %s already exists", f.Key)
	}
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

func (r *pgFiles) getBy(ctx context.Context, column, value string) (*models.File, error) {
	f, err := scanFile(r.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE `+column+` = $1`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "file %s not found", value)
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

func (r *pgFiles) Get(ctx context.Context, id string) (*models.File, error) {
	return r.getBy(ctx, "id", id)
}

func (r *pgFiles) GetByKey(ctx context.Context, key string) (*models.File, error) {
	return r.getBy(ctx, "key", key)
}

func (r *pgFiles) ListByUser(ctx context.Context, userID string) ([]models.File, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := []models.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

func (r *pgFiles) CountCreatedBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files WHERE user_id = $1 AND created_at >= $2 AND created_at < $3`,
		userID, from, to,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return n, nil
}

func (r *pgFiles) SetStatus(ctx context.Context, id string, status models.UploadStatus) (bool, error) {
	if !status.Terminal() {
		return false, apperr.New(apperr.Invalid, "status %s is not terminal", status)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE files SET upload_status = $2, updated_at = now()
		 WHERE id = $1 AND upload_status = 'PROCESSING'`, id, status)
	if err != nil {
		return false, fmt.Errorf("set file status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set file status: %w", err)
	}
	return n == 1, nil
}

func (r *pgFiles) Delete(ctx context.Context, id string) error {
	return database.WithTx(ctx, r.db, nil, func(ctx context.Context, tx database.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE file_id = $1`, id); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete file: %w", err)
		}
		return expectOne(res, "file "+id)
	})
}

type pgMessages struct {
	db database.DBTX
}

const messageColumns = `id, file_id, user_id, is_user_message, text, created_at, updated_at`

func (r *pgMessages) Create(ctx context.Context, m *models.Message) error {
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.FileID, m.UserID, m.IsUserMessage, m.Text, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *pgMessages) query(ctx context.Context, q string, args ...any) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.FileID, &m.UserID, &m.IsUserMessage, &m.Text, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *pgMessages) Page(ctx context.Context, fileID string, limit int, cursor string) (*models.MessagePage, error) {
	var (
		rows []models.Message
		err  error
	)
	if cursor == "" {
		rows, err = r.query(ctx,
			`SELECT `+messageColumns+` FROM messages WHERE file_id = $1
			 ORDER BY created_at DESC, id DESC LIMIT $2`, fileID, limit+1)
	} else {
		rows, err = r.query(ctx,
			`SELECT `+messageColumns+` FROM messages WHERE file_id = $1
			   AND (created_at, id) <= (SELECT created_at, id FROM messages WHERE id = $2 AND file_id = $1)
			 ORDER BY created_at DESC, id DESC LIMIT $3`, fileID, cursor, limit+1)
	}
	if err != nil {
		return nil, err
	}
	return splitPage(rows, limit), nil
}

func (r *pgMessages) Recent(ctx context.Context, fileID string, n int) ([]models.Message, error) {
	return r.query(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE file_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`, fileID, n)
}

func (r *pgMessages) Count(ctx context.Context, fileID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE file_id = $1`, fileID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

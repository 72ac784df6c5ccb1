package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/maneesh/filevault/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MySQLClient wraps the persistent metadata store holding user and file
// records, with tracing on each operation.
type MySQLClient struct {
	db *sql.DB
}

// NewMySQLClient initializes a new MySQL client
func NewMySQLClient(dsn string) (*MySQLClient, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &MySQLClient{db: db}, nil
}

// Close closes the database connection
func (mc *MySQLClient) Close() error {
	return mc.db.Close()
}

// IsAlive reports whether the database connection is healthy.
func (mc *MySQLClient) IsAlive(ctx context.Context) bool {
	return mc.db.PingContext(ctx) == nil
}

// Migrate creates the users and files tables if they do not exist. The seq
// column on files records insertion order for stable child paging.
func (mc *MySQLClient) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id CHAR(36) PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			seq BIGINT AUTO_INCREMENT PRIMARY KEY,
			id CHAR(36) NOT NULL UNIQUE,
			user_id CHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL,
			type VARCHAR(10) NOT NULL,
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			parent_id CHAR(36) NOT NULL DEFAULT '',
			blob_key VARCHAR(255) NOT NULL DEFAULT '',
			INDEX idx_files_parent (parent_id),
			INDEX idx_files_owner (user_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := mc.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// InsertUser inserts a user row with tracing. ok is false when the email is
// already taken.
func (mc *MySQLClient) InsertUser(ctx context.Context, user *models.User) (ok bool, err error) {
	ctx, span := tracer.Start(ctx, "mysql.insert_user",
		trace.WithAttributes(
			attribute.String("user_id", user.ID),
		),
	)
	defer span.End()

	query := `INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)`

	_, err = mc.db.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash)
	if err != nil {
		if isDuplicateKey(err) {
			span.SetAttributes(attribute.Bool("duplicate_email", true))
			return false, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("failed to insert user: %w", err)
	}
	return true, nil
}

// GetUserByEmail retrieves a user by email; (nil, nil) when absent.
func (mc *MySQLClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "mysql.get_user_by_email")
	defer span.End()

	query := `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`
	return mc.scanUser(ctx, span, mc.db.QueryRowContext(ctx, query, email))
}

// GetUserByID retrieves a user by id; (nil, nil) when absent.
func (mc *MySQLClient) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "mysql.get_user_by_id",
		trace.WithAttributes(
			attribute.String("user_id", id),
		),
	)
	defer span.End()

	query := `SELECT id, email, password_hash, created_at FROM users WHERE id = ?`
	return mc.scanUser(ctx, span, mc.db.QueryRowContext(ctx, query, id))
}

func (mc *MySQLClient) scanUser(ctx context.Context, span trace.Span, row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, nil
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	span.SetAttributes(attribute.Bool("found", true))
	return &user, nil
}

// CountUsers returns the number of user rows.
func (mc *MySQLClient) CountUsers(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "mysql.count_users")
	defer span.End()

	var n int64
	if err := mc.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// CountFiles returns the number of file rows.
func (mc *MySQLClient) CountFiles(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "mysql.count_files")
	defer span.End()

	var n int64
	if err := mc.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}

const fileColumns = `id, user_id, name, type, is_public, parent_id, blob_key, seq`

// InsertFile inserts file metadata with tracing and fills in the assigned
// insertion sequence.
func (mc *MySQLClient) InsertFile(ctx context.Context, file *models.File) error {
	ctx, span := tracer.Start(ctx, "mysql.insert_file",
		trace.WithAttributes(
			attribute.String("file_id", file.ID),
			attribute.String("file_type", string(file.Type)),
		),
	)
	defer span.End()

	query := `INSERT INTO files (id, user_id, name, type, is_public, parent_id, blob_key)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	res, err := mc.db.ExecContext(ctx, query,
		file.ID, file.UserID, file.Name, string(file.Type), file.IsPublic, file.ParentID.Ref(), file.BlobKey)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert file: %w", err)
	}
	if seq, err := res.LastInsertId(); err == nil {
		file.Seq = seq
	}

	span.SetAttributes(attribute.Bool("insert_success", true))
	return nil
}

// GetFile retrieves file metadata by id; (nil, nil) when absent.
func (mc *MySQLClient) GetFile(ctx context.Context, id string) (*models.File, error) {
	ctx, span := tracer.Start(ctx, "mysql.get_file",
		trace.WithAttributes(
			attribute.String("file_id", id),
		),
	)
	defer span.End()

	query := `SELECT ` + fileColumns + ` FROM files WHERE id = ?`
	return mc.scanFile(span, mc.db.QueryRowContext(ctx, query, id))
}

// GetFileForOwner retrieves file metadata scoped to its owner; (nil, nil)
// when no row matches both id and owner.
func (mc *MySQLClient) GetFileForOwner(ctx context.Context, id, userID string) (*models.File, error) {
	ctx, span := tracer.Start(ctx, "mysql.get_file_for_owner",
		trace.WithAttributes(
			attribute.String("file_id", id),
			attribute.String("user_id", userID),
		),
	)
	defer span.End()

	query := `SELECT ` + fileColumns + ` FROM files WHERE id = ? AND user_id = ?`
	return mc.scanFile(span, mc.db.QueryRowContext(ctx, query, id, userID))
}

func (mc *MySQLClient) scanFile(span trace.Span, row *sql.Row) (*models.File, error) {
	var (
		file     models.File
		ftype    string
		parentID string
	)
	err := row.Scan(&file.ID, &file.UserID, &file.Name, &ftype, &file.IsPublic, &parentID, &file.BlobKey, &file.Seq)
	if err == sql.ErrNoRows {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, nil
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query file: %w", err)
	}
	file.Type = models.FileType(ftype)
	file.ParentID = models.ParentRef(parentID)
	span.SetAttributes(attribute.Bool("found", true))
	return &file, nil
}

// ListChildren retrieves up to limit direct children of a parent, ordered by
// insertion sequence, skipping offset rows. Each call re-runs the query; no
// cursor state is kept.
func (mc *MySQLClient) ListChildren(ctx context.Context, parentID models.ParentID, offset, limit int) ([]*models.File, error) {
	ctx, span := tracer.Start(ctx, "mysql.list_children",
		trace.WithAttributes(
			attribute.String("parent_id", parentID.String()),
			attribute.Int("offset", offset),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	query := `SELECT ` + fileColumns + ` FROM files
			  WHERE parent_id = ?
			  ORDER BY seq ASC
			  LIMIT ? OFFSET ?`

	rows, err := mc.db.QueryContext(ctx, query, parentID.Ref(), limit, offset)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var files []*models.File
	for rows.Next() {
		var (
			file   models.File
			ftype  string
			parent string
		)
		err := rows.Scan(&file.ID, &file.UserID, &file.Name, &ftype, &file.IsPublic, &parent, &file.BlobKey, &file.Seq)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		file.Type = models.FileType(ftype)
		file.ParentID = models.ParentRef(parent)
		files = append(files, &file)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating children: %w", err)
	}

	span.SetAttributes(attribute.Int("child_count", len(files)))
	return files, nil
}

// SetFileVisibility flips is_public with a single conditional update scoped
// to (id, owner) and returns the updated row; (nil, nil) when no row matched.
func (mc *MySQLClient) SetFileVisibility(ctx context.Context, id, userID string, public bool) (*models.File, error) {
	ctx, span := tracer.Start(ctx, "mysql.set_file_visibility",
		trace.WithAttributes(
			attribute.String("file_id", id),
			attribute.String("user_id", userID),
			attribute.Bool("is_public", public),
		),
	)
	defer span.End()

	query := `UPDATE files SET is_public = ? WHERE id = ? AND user_id = ?`

	res, err := mc.db.ExecContext(ctx, query, public, id, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update file: %w", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read update result: %w", err)
	}

	// Re-read to return the updated row. RowsAffected is 0 both when the row
	// is absent and when the flag already had the target value, so the
	// read-back also disambiguates those cases.
	return mc.GetFileForOwner(ctx, id, userID)
}

// isDuplicateKey reports whether err is MySQL error 1062 (duplicate entry
// for a unique key).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
)

const userColumns = `id, email, name, password_hash, role, is_active, created_at, updated_at`

// SQLUserRepository implements domain.UserRepository on PostgreSQL or SQLite
type SQLUserRepository struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewSQLUserRepository creates a new user repository
func NewSQLUserRepository(db *sql.DB, dialect Dialect, logger *slog.Logger) *SQLUserRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &SQLUserRepository{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var role string
	var createdAt, updatedAt int64
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&role,
		&user.IsActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = domain.Role(role)
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return user, nil
}

// Insert creates a new user, assigning its id and timestamps
func (r *SQLUserRepository) Insert(ctx context.Context, user *domain.User) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate id: %w", err)
	}
	ts := now()

	query := r.dialect.Rebind(`
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)

	_, err = r.db.ExecContext(ctx, query,
		id.String(),
		user.Email,
		user.Name,
		user.PasswordHash,
		string(user.Role),
		user.IsActive,
		toMillis(ts),
		toMillis(ts),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("User with this email already exists")
		}
		r.logger.Error("failed to create user",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.ID = id.String()
	user.CreatedAt = ts
	user.UpdatedAt = ts
	return nil
}

// FindByID retrieves a user by ID
func (r *SQLUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := r.dialect.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = $1`)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound("User with id %q not found", id)
		}
		r.logger.Error("failed to get user by id",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// FindByEmail retrieves a user by email regardless of active status
func (r *SQLUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := r.dialect.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = $1`)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound("User with email %q not found", email)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// List returns every user in creation order
func (r *SQLUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		r.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			r.logger.Error("failed to scan user row",
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// UpdateByID applies the supplied fields and returns the updated record
func (r *SQLUserRepository) UpdateByID(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	var sets []string
	var args []any
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Email != nil {
		set("email", *patch.Email)
	}
	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.PasswordHash != nil {
		set("password_hash", *patch.PasswordHash)
	}
	if patch.Role != nil {
		set("role", string(*patch.Role))
	}
	if patch.IsActive != nil {
		set("is_active", *patch.IsActive)
	}
	set("updated_at", toMillis(now()))
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	user, err := scanUser(r.db.QueryRowContext(ctx, r.dialect.Rebind(query), args...))
	if err != nil {
		switch {
		case isNoRows(err):
			return nil, domain.NotFound("User with id %q not found", id)
		case isUniqueViolation(err):
			return nil, domain.Conflict("User with this email already exists")
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// DeleteByID removes a user and returns the deleted record
func (r *SQLUserRepository) DeleteByID(ctx context.Context, id string) (*domain.User, error) {
	query := r.dialect.Rebind(`DELETE FROM users WHERE id = $1 RETURNING ` + userColumns)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound("User with id %q not found", id)
		}
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}

	return user, nil
}

// CountActive returns the number of active users
func (r *SQLUserRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT COUNT(*) FROM users WHERE is_active = $1`), true).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

var _ domain.UserRepository = (*SQLUserRepository)(nil)

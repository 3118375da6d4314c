package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/marvinalivio/p4-backend/types"
)

const uniqueViolation = "23505"

const userColumns = `id, first_name, last_name, username, password_hash, deleted,
		profile, education, work_experience, skills, portfolio, created_at, updated_at`

// PostgresUserRepository stores users in PostgreSQL, keeping each
// sub-sequence in its own JSONB column.
type PostgresUserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db, now: time.Now}
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.User{}, ErrNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.queryOne(ctx, query, username)
}

func (r *PostgresUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := r.now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Normalize()

	docs, err := encodeSections(user)
	if err != nil {
		return types.User{}, err
	}

	const query = `
		INSERT INTO users (id, first_name, last_name, username, password_hash, deleted,
			profile, education, work_experience, skills, portfolio, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err = r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Username,
		user.PasswordHash,
		user.Deleted,
		docs[0],
		docs[1],
		docs[2],
		docs[3],
		docs[4],
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrDuplicateKey
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, id string, update types.UserUpdate) (types.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.User{}, ErrNotFound
	}
	// Nothing to write; leave updated_at untouched.
	if update.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	setJSON := func(column string, value any) error {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", column, err)
		}
		set(column, string(data))
		return nil
	}

	if update.Profile != nil {
		if err := setJSON("profile", nonNil(*update.Profile)); err != nil {
			return types.User{}, err
		}
	}
	if update.Education != nil {
		if err := setJSON("education", nonNil(*update.Education)); err != nil {
			return types.User{}, err
		}
	}
	if update.WorkExperience != nil {
		if err := setJSON("work_experience", nonNil(*update.WorkExperience)); err != nil {
			return types.User{}, err
		}
	}
	if update.Skills != nil {
		if err := setJSON("skills", nonNil(*update.Skills)); err != nil {
			return types.User{}, err
		}
	}
	if update.Portfolio != nil {
		if err := setJSON("portfolio", nonNil(*update.Portfolio)); err != nil {
			return types.User{}, err
		}
	}
	if update.Deleted != nil {
		set("deleted", *update.Deleted)
	}
	set("updated_at", r.now())

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "),
		len(args),
		userColumns,
	)
	return r.queryOne(ctx, query, args...)
}

func (r *PostgresUserRepository) ListActive(ctx context.Context) ([]types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted = FALSE ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []types.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *PostgresUserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresUserRepository) queryOne(ctx context.Context, query string, args ...any) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var (
		user                                                 types.User
		profile, education, experience, skills, portfolioRaw []byte
	)
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Username,
		&user.PasswordHash,
		&user.Deleted,
		&profile,
		&education,
		&experience,
		&skills,
		&portfolioRaw,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, err
	}

	sections := []struct {
		column string
		raw    []byte
		dest   any
	}{
		{"profile", profile, &user.Profile},
		{"education", education, &user.Education},
		{"work_experience", experience, &user.WorkExperience},
		{"skills", skills, &user.Skills},
		{"portfolio", portfolioRaw, &user.Portfolio},
	}
	for _, section := range sections {
		if len(section.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(section.raw, section.dest); err != nil {
			return types.User{}, fmt.Errorf("decode %s: %w", section.column, err)
		}
	}
	user.Normalize()
	return user, nil
}

func encodeSections(user types.User) ([5]string, error) {
	var out [5]string
	values := []any{user.Profile, user.Education, user.WorkExperience, user.Skills, user.Portfolio}
	for i, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			return out, fmt.Errorf("encode user sections: %w", err)
		}
		out[i] = string(data)
	}
	return out, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

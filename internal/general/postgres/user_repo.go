package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"ride-booking/internal/domain/user"
	"ride-booking/internal/ports"

	"github.com/jackc/pgx/v5"
)

// UserRepo persists users using pgx and plain SQL.
type UserRepo struct{}

// NewUserRepo constructs a new UserRepo.
func NewUserRepo() ports.UserRepository {
	return &UserRepo{}
}

const userColumns = `
	id, created_at, updated_at,
	COALESCE(email, ''), COALESCE(phone, ''), display_name,
	role, status, COALESCE(password_hash, ''), attrs`

// CreateUser inserts a new user row.
func (repo *UserRepo) CreateUser(ctx context.Context, u *user.User) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	var attrsValue any = u.Attrs // pgx marshals to jsonb

	// if caller didn't pre-assign an ID, insert and get it back
	if u.ID == "" {
		return tx.QueryRow(ctx, `
			INSERT INTO users (email, phone, display_name, role, status, password_hash, attrs)
			VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4, $5, NULLIF($6, ''), $7)
			RETURNING id, created_at, updated_at
		`,
			u.Email,
			u.Phone,
			u.DisplayName,
			u.Role.String(),
			u.Status.String(),
			u.PasswordHash,
			attrsValue,
		).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	}

	// if caller provided an ID, insert explicitly
	return tx.QueryRow(ctx, `
		INSERT INTO users (id, email, phone, display_name, role, status, password_hash, attrs)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), $8)
		RETURNING created_at, updated_at
	`,
		u.ID,
		u.Email,
		u.Phone,
		u.DisplayName,
		u.Role.String(),
		u.Status.String(),
		u.PasswordHash,
		attrsValue,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

// GetByID returns one user by id.
func (repo *UserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	return repo.getOne(ctx, `SELECT`+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByPhone returns the user owning an E.164 phone number.
func (repo *UserRepo) GetByPhone(ctx context.Context, phone string) (*user.User, error) {
	return repo.getOne(ctx, `SELECT`+userColumns+` FROM users WHERE phone = $1`, phone)
}

// GetByEmail returns the user owning a (lowercased) email address.
func (repo *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return repo.getOne(ctx, `SELECT`+userColumns+` FROM users WHERE email = lower($1)`, email)
}

// UpdateProfile writes the editable profile columns.
func (repo *UserRepo) UpdateProfile(ctx context.Context, u *user.User) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET display_name = $2,
		    email        = NULLIF($3, ''),
		    updated_at   = $4
		WHERE id = $1
	`, u.ID, u.DisplayName, u.Email, u.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// CountByRole returns the number of active users per role.
func (repo *UserRepo) CountByRole(ctx context.Context) (map[user.Role]int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT role, COUNT(*)
		FROM users
		WHERE status = 'ACTIVE'
		GROUP BY role
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[user.Role]int, 3)
	for rows.Next() {
		var (
			role  string
			count int
		)
		if err := rows.Scan(&role, &count); err != nil {
			return nil, err
		}
		out[user.Role(role)] = count
	}

	return out, rows.Err()
}

func (repo *UserRepo) getOne(ctx context.Context, query string, arg any) (*user.User, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out        user.User
		roleText   string
		statusText string
		attrsRaw   []byte
	)

	err = tx.QueryRow(ctx, query, arg).Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt,
		&out.Email, &out.Phone, &out.DisplayName,
		&roleText, &statusText, &out.PasswordHash, &attrsRaw,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	out.Role = user.Role(roleText)
	out.Status = user.Status(statusText)

	// decode JSONB attrs (nullable but defaults to '{}' in schema)
	out.Attrs = make(user.Attrs)
	if len(attrsRaw) > 0 {
		if err := json.Unmarshal(attrsRaw, &out.Attrs); err != nil {
			return nil, err
		}
	}

	return &out, nil
}

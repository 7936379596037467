package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	intconfig "pilgrimage/internal/config"
	intdb "pilgrimage/internal/db"
	"pilgrimage/internal/domain"
	"pilgrimage/internal/domain/models"

	"github.com/jmoiron/sqlx"
)

const userColumns = `id, name, email, phone, password_hash, role, status, created_at, updated_at`

// UserRepo backs identity lookups. users.email is UNIQUE, which is what makes
// guest creation safe across processes.
type UserRepo struct {
	DB *sql.DB
}

func (r UserRepo) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r UserRepo) x() *sqlx.DB {
	return sqlx.NewDb(r.db(), "mysql")
}

func (r UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r UserRepo) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r UserRepo) getBy(ctx context.Context, col string, val any) (models.User, error) {
	var u models.User
	err := r.x().GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE `+col+` = ? LIMIT 1`, val)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, domain.NotFoundError{Resource: "user", Err: err}
		}
		return u, fmt.Errorf("get user by %s: %w", col, err)
	}
	return u, nil
}

// CreateUser inserts a user. A taken email yields ConflictError wrapping domain.ErrDuplicate.
func (r UserRepo) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	res, err := r.db().ExecContext(ctx, `
		INSERT INTO users (name, email, phone, password_hash, role, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW(), NOW())
	`, u.Name, u.Email, u.Phone, u.PasswordHash, u.Role, u.Status)
	if err != nil {
		if intdb.IsDuplicateKey(err) {
			return models.User{}, domain.ConflictError{Resource: "user", Msg: "email already registered", Err: domain.ErrDuplicate}
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return r.GetUserByID(ctx, id)
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/user-account-service/internal/model"
)

const userColumns = "id,name,email,password_hash,role,refresh_token,image_url,created_at,updated_at"

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u.  The caller supplies the id and the password hash.
func (r *UserRepo) Create(ctx context.Context, u model.User) error {
	_, err := r.DB.NamedExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, role, image_url) VALUES (:id, :name, :email, :password_hash, :role, :image_url)",
		u)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetByEmail fetches a user by exact email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	return u, notFound(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return u, notFound(err)
}

// List returns every user ordered by creation time.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	if err := r.DB.SelectContext(ctx, &users,
		"SELECT "+userColumns+" FROM users ORDER BY created_at, id"); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateName sets the display name of the user with the given id.
func (r *UserRepo) UpdateName(ctx context.Context, id, name string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET name=? WHERE id=?", name, id)
	return err
}

// UpdatePasswordHash replaces the stored credential hash.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET password_hash=? WHERE id=?", hash, id)
	return err
}

// UpdateImageURL records the public URL of a new profile photo.
func (r *UserRepo) UpdateImageURL(ctx context.Context, id, url string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET image_url=? WHERE id=?", url, id)
	return err
}

// Delete removes the user row.  Deleting a missing id is ErrNotFound.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

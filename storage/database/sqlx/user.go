package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuitionbook/core"
	"github.com/trezcool/tuitionbook/core/user"
)

const pqUniqueViolation = "23505"

type userRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Email          string         `db:"email"`
	Role           string         `db:"role"`
	EmailVerified  bool           `db:"email_verified"`
	LinkedTuitions pq.StringArray `db:"linked_tuitions"`
	PasswordHash   null.Bytes     `db:"password_hash"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	LastLogin      null.Time      `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	linked := usr.LinkedTuitions
	if linked == nil {
		linked = []string{}
	}
	return userRow{
		ID:             usr.ID,
		Name:           usr.Name,
		Email:          usr.Email,
		Role:           usr.Role,
		EmailVerified:  usr.EmailVerified,
		LinkedTuitions: linked,
		PasswordHash:   null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		CreatedAt:      usr.CreatedAt.UTC(),
		UpdatedAt:      usr.UpdatedAt.UTC(),
		LastLogin:      null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (row userRow) user() user.User {
	linked := []string(row.LinkedTuitions)
	if linked == nil {
		linked = []string{}
	}
	return user.User{
		ID:             row.ID,
		Name:           row.Name,
		Email:          row.Email,
		Role:           row.Role,
		EmailVerified:  row.EmailVerified,
		LinkedTuitions: linked,
		PasswordHash:   row.PasswordHash.Bytes,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
		LastLogin:      row.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, op string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return core.NewPersistenceError(err, op)
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := toUserRow(usr)

	const q = `
	INSERT INTO users (id, name, email, role, email_verified, linked_tuitions, password_hash, created_at, updated_at, last_login)
	VALUES (:id, :name, :email, :role, :email_verified, :linked_tuitions, :password_hash, :created_at, :updated_at, :last_login)`

	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, core.NewPersistenceError(err, "inserting user")
	}
	return row.user(), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM users WHERE id = $1`, id); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user by ID")
	}
	return row.user(), nil
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM users WHERE email = $1`, email); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user by email")
	}
	return row.user(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if _, err := uuid.Parse(usr.ID); err != nil {
		return user.User{}, user.ErrNotFound
	}

	const q = `
	UPDATE users
	SET name = $2, email_verified = $3, password_hash = COALESCE($4, password_hash), updated_at = $5, last_login = $6
	WHERE id = $1
	RETURNING *`

	in := toUserRow(usr)
	var row userRow
	err := repo.db.GetContext(ctx, &row, q, in.ID, in.Name, in.EmailVerified, in.PasswordHash, in.UpdatedAt, in.LastLogin)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return row.user(), nil
}

func (repo userRepository) AddLinkedTuition(ctx context.Context, uid, tuitionID string) error {
	const q = `
	UPDATE users SET linked_tuitions = array_append(linked_tuitions, $2::text)
	WHERE id = $1 AND NOT ($2::text = ANY (linked_tuitions))`

	_, err := repo.db.ExecContext(ctx, q, uid, tuitionID)
	return core.NewPersistenceError(err, "linking tuition")
}

func (repo userRepository) RemoveLinkedTuition(ctx context.Context, uid, tuitionID string) error {
	const q = `UPDATE users SET linked_tuitions = array_remove(linked_tuitions, $2::text) WHERE id = $1`

	_, err := repo.db.ExecContext(ctx, q, uid, tuitionID)
	return core.NewPersistenceError(err, "unlinking tuition")
}

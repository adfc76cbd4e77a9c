package repository

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	"iotdash-server/internal/modules/auth/types"
)

//go:embed sql/upsert-user.sql
var upsertUserSQL string

//go:embed sql/get-user-by-login.sql
var getUserByLoginSQL string

//go:embed sql/get-user-by-id.sql
var getUserByIDSQL string

//go:embed sql/list-users.sql
var listUsersSQL string

//go:embed sql/update-user-password.sql
var updateUserPasswordSQL string

// UserRepository stores accounts. Upsert keys on email; an existing account's
// password hash is only changed through SetPassword.
type UserRepository interface {
	Upsert(u types.User) (types.User, error)
	// GetByLogin matches either name or email; ok=false when absent.
	GetByLogin(login string) (types.User, bool, error)
	GetByID(id int64) (types.User, bool, error)
	List() ([]types.User, error)
	SetPassword(id int64, passwordHash string) error
}

type userRepositoryImpl struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepositoryImpl{db: db}
}

func (r *userRepositoryImpl) Upsert(u types.User) (types.User, error) {
	active := 0
	if u.Active {
		active = 1
	}
	if _, err := r.db.Exec(upsertUserSQL, u.Name, u.Email, u.PasswordHash, string(u.Role), active); err != nil {
		return types.User{}, fmt.Errorf("upsert user: %w", err)
	}
	stored, ok, err := r.GetByLogin(u.Email)
	if err != nil {
		return types.User{}, err
	}
	if !ok {
		return types.User{}, fmt.Errorf("upsert user: %q not found after write", u.Email)
	}
	return stored, nil
}

func (r *userRepositoryImpl) GetByLogin(login string) (types.User, bool, error) {
	row := r.db.QueryRow(getUserByLoginSQL, login, login)
	return scanUserRow(row.Scan)
}

func (r *userRepositoryImpl) GetByID(id int64) (types.User, bool, error) {
	row := r.db.QueryRow(getUserByIDSQL, id)
	return scanUserRow(row.Scan)
}

func (r *userRepositoryImpl) List() ([]types.User, error) {
	rows, err := r.db.Query(listUsersSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close user rows", "error", err)
		}
	}()
	var out []types.User
	for rows.Next() {
		u, _, err := scanUserRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *userRepositoryImpl) SetPassword(id int64, passwordHash string) error {
	res, err := r.db.Exec(updateUserPasswordSQL, passwordHash, id)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("set password: user %d not found", id)
	}
	return nil
}

func scanUserRow(scan func(...any) error) (types.User, bool, error) {
	var u types.User
	var role string
	var active int
	err := scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &active)
	if err == sql.ErrNoRows {
		return types.User{}, false, nil
	}
	if err != nil {
		return types.User{}, false, err
	}
	u.Role = types.Role(role)
	u.Active = active != 0
	return u, true, nil
}

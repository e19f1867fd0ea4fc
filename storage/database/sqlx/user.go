package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/academia/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

const userColumns = `id, name, username, email, role, is_active, password_hash, created_at, updated_at`

func (repo *userRepository) CheckUsernameUniqueness(username, email string, excludedUsers ...user.User) error {
	excluded := make(pq.Int64Array, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded = append(excluded, int64(u.ID))
	}

	var clash struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	err := repo.db.Get(&clash, `
		SELECT username, email FROM app_user
		WHERE (username = $1 OR (email <> '' AND email = $2)) AND id <> ALL($3)
		LIMIT 1
	`, username, email, excluded)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if clash.Username == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(usr user.User) (user.User, error) {
	err := repo.db.QueryRowx(`
		INSERT INTO app_user (name, username, email, role, is_active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, usr.Name, usr.Username, usr.Email, usr.Role, usr.IsActive, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt).Scan(&usr.ID)
	return usr, err
}

func (repo *userRepository) QueryAllUsers() ([]user.User, error) {
	users := make([]user.User, 0)
	err := repo.db.Select(&users, `SELECT `+userColumns+` FROM app_user ORDER BY id`)
	return users, err
}

func (repo *userRepository) GetUserByID(id int) (user.User, error) {
	var usr user.User
	err := repo.db.Get(&usr, `SELECT `+userColumns+` FROM app_user WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return user.User{}, user.ErrNotFound
	}
	return usr, err
}

func (repo *userRepository) GetUserByUsername(username string) (user.User, error) {
	var usr user.User
	err := repo.db.Get(&usr, `SELECT `+userColumns+` FROM app_user WHERE username = $1`, username)
	if err == sql.ErrNoRows {
		return user.User{}, user.ErrNotFound
	}
	return usr, err
}

func (repo *userRepository) GetUserByUsernameOrEmail(username string) (user.User, error) {
	var usr user.User
	err := repo.db.Get(&usr, `
		SELECT `+userColumns+` FROM app_user
		WHERE username = $1 OR (email <> '' AND email = $1)
	`, username)
	if err == sql.ErrNoRows {
		return user.User{}, user.ErrNotFound
	}
	return usr, err
}

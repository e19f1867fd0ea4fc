package user_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/user"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
)

func setup(t *testing.T) (*user.Service, user.Repository) {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewUserRepository(db)
	return user.NewService(repo, nil), repo
}

func Test_Service_Create(t *testing.T) {
	svc, _ := setup(t)

	usr, err := svc.Create(user.NewUser{
		Name:            "Awe Mdr",
		Username:        "awe",
		Email:           "awe@test.cd",
		Role:            user.RoleStudent,
		Password:        "s3cr3t",
		PasswordConfirm: "s3cr3t",
	})
	require.NoError(t, err)

	assert.NotZero(t, usr.ID)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsStudent())
	assert.NoError(t, usr.CheckPassword("s3cr3t"))
	assert.Error(t, usr.CheckPassword("nope"))
}

func Test_NewUser_Validate_uniqueness(t *testing.T) {
	svc, repo := setup(t)

	_, err := repo.CreateUser(user.User{Username: "taken", Email: "taken@test.cd", Role: user.RoleStudent})
	require.NoError(t, err)

	tests := []struct {
		name    string
		nu      user.NewUser
		wantErr bool
	}{
		{
			name: "ok",
			nu:   user.NewUser{Username: "fresh", Role: user.RoleTeacher, Password: "pwd", PasswordConfirm: "pwd"},
		},
		{
			name:    "duplicate username",
			nu:      user.NewUser{Username: "taken", Role: user.RoleStudent, Password: "pwd", PasswordConfirm: "pwd"},
			wantErr: true,
		},
		{
			name:    "duplicate email",
			nu:      user.NewUser{Username: "fresh2", Email: "taken@test.cd", Role: user.RoleStudent, Password: "pwd", PasswordConfirm: "pwd"},
			wantErr: true,
		},
		{
			name:    "bad role",
			nu:      user.NewUser{Username: "fresh3", Role: "Admin", Password: "pwd", PasswordConfirm: "pwd"},
			wantErr: true,
		},
		{
			name:    "password mismatch",
			nu:      user.NewUser{Username: "fresh4", Role: user.RoleStudent, Password: "pwd", PasswordConfirm: "nope"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(svc)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_Service_lookups(t *testing.T) {
	svc, repo := setup(t)
	_, err := repo.CreateUser(user.User{Username: "awe", Email: "awe@test.cd", Role: user.RoleTeacher})
	require.NoError(t, err)

	usr, err := svc.GetByUsername(" AWE ")
	require.NoError(t, err)
	assert.Equal(t, "awe", usr.Username)

	usr, err = svc.GetByUsernameOrEmail("awe@test.cd")
	require.NoError(t, err)
	assert.Equal(t, "awe", usr.Username)

	_, err = svc.GetByUsername("ghost")
	assert.Equal(t, user.ErrNotFound, err)
}

package main

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/trezcool/academia/core/user"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	usrRepo = inmemdb.NewUserRepository(db)

	return &commandLine{usrRepo: usrRepo}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version", "fix": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s requires a VERSION argument", command)
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to requires a VERSION argument"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			checkCLIErr(t, tt, err)
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "username but no role", args: []string{"adduser", "-username", "awe"}, wantErr: errHelp},
		{name: "empty password", args: []string{"adduser", "-username", "awe", "-role", "Teacher"}, wantErr: errHelp},
		{
			name:       "bad role",
			args:       []string{"adduser", "-username", "awe", "-role", "Admin"},
			extra:      extra{pwd: "s3cr3t"},
			wantErrStr: `invalid role "Admin", want one of [Teacher Student]`,
		},
		{
			name:  "create teacher",
			args:  []string{"adduser", "-username", "awe", "-email", "awe@test.cd", "-name", "Awe Mdr", "-role", "Teacher"},
			extra: extra{pwd: "s3cr3t"},
		},
		{
			name:    "duplicate username",
			args:    []string{"adduser", "-username", "awe", "-role", "Student"},
			extra:   extra{pwd: "s3cr3t"},
			wantErr: user.ErrUsernameExists,
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			checkCLIErr(t, tt, err)
		})
	}

	usr, err := usrRepo.GetUserByUsername("awe")
	if err != nil {
		t.Fatalf("GetUserByUsername() failed: %v", err)
	}
	if usr.Role != user.RoleTeacher || !usr.IsActive {
		t.Errorf("unexpected user created: %+v", usr)
	}
	if err := usr.CheckPassword("s3cr3t"); err != nil {
		t.Error("failed to set password")
	}
}

func checkCLIErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	if err == nil {
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, want %v%s", tt.wantErr, tt.wantErrStr)
		}
		return
	}
	if tt.wantErr != nil {
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	} else if tt.wantErrStr != "" {
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	} else {
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

func (cli *commandLine) addUser(uname, email, name, role, pwd string) error {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	var validRole bool
	for _, r := range user.AllRoles {
		if role == r {
			validRole = true
			break
		}
	}
	if !validRole {
		return fmt.Errorf("invalid role %q, want one of %v", role, user.AllRoles)
	}

	if err := cli.usrRepo.CheckUsernameUniqueness(uname, email); err != nil {
		return err
	}

	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err := cli.usrRepo.CreateUser(usr)
	return err
}

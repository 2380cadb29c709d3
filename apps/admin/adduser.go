package main

import (
	"context"
	"errors"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/user"
)

var errInvalidTier = errors.New("tier must be one of free, plus, pro")

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(ctx context.Context, email, tier, pwd string) error {
	email = core.CleanString(email, true /* lower */)
	tier = core.CleanString(tier, true /* lower */)
	switch tier {
	case user.TierFree, user.TierPlus, user.TierPro:
	default:
		return errInvalidTier
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	exists := err == nil
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		now := core.Now()
		usr = user.User{Email: email, CreatedAt: now, UpdatedAt: now}
	}
	usr.Tier = tier
	usr.IsActive = true
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		usr.UpdatedAt = core.Now()
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return err
}

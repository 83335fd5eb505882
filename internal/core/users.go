package core

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/data"
	"github.com/siahsang/blogplatform/internal/validator"
	"github.com/siahsang/blogplatform/models"
)

var usernameRX = regexp.MustCompile(`^[\w.@+-]+$`)

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func validatePassword(v *validator.Validator, key, password string) {
	v.CheckNotBlank(password, key, "This field may not be blank.")
	v.CheckMinLength(password, 8, key, "Ensure this field has at least 8 characters.")
	v.CheckMaxLength(password, 128, key, "Ensure this field has no more than 128 characters.")
}

// Register creates the account together with its author profile.
func (c *Core) Register(ctx context.Context, in RegisterInput) (*auth.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	v := validator.New()
	v.CheckNotBlank(in.Username, "username", "This field may not be blank.")
	v.CheckMinLength(in.Username, 3, "username", "Ensure this field has at least 3 characters.")
	v.CheckMaxLength(in.Username, 150, "username", "Ensure this field has no more than 150 characters.")
	v.Check(v.IsMatch(in.Username, usernameRX), "username", "Enter a valid username. Letters, digits and @/./+/-/_ only.")
	v.CheckNotBlank(in.Email, "email", "This field may not be blank.")
	v.CheckEmail(in.Email, "email", "Enter a valid email address.")
	validatePassword(v, "password", in.Password)
	v.CheckMaxLength(in.FirstName, 30, "first_name", "Ensure this field has no more than 30 characters.")
	v.CheckMaxLength(in.LastName, 30, "last_name", "Ensure this field has no more than 30 characters.")
	if err := validationError(v); err != nil {
		return nil, err
	}

	user := &auth.User{
		Username:   in.Username,
		Email:      in.Email,
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		IsActive:   true,
		DateJoined: c.now(),
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, err
	}

	err := c.insertWithSlug(ctx, slugTarget{
		name:   user.Username,
		exists: c.authorSlugExists,
		insert: func(txCtx context.Context, slug string) error {
			user.ID = 0
			if err := c.models.Users.Insert(txCtx, user); err != nil {
				return err
			}
			return c.models.Authors.Insert(txCtx, &models.Author{UserID: user.ID, DisplayName: user.DisplayName(), Slug: slug})
		},
	})
	if err != nil {
		return nil, storeError(err)
	}

	c.log.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Authenticate checks an email and password pair.
func (c *Core) Authenticate(ctx context.Context, email, password string) (*auth.User, error) {
	v := validator.New()
	v.CheckNotBlank(email, "email", "This field may not be blank.")
	v.CheckNotBlank(password, "password", "This field may not be blank.")
	if err := validationError(v); err != nil {
		return nil, err
	}

	user, err := c.models.Users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, xerrors.New(ErrInvalidCredentials)
		}
		return nil, err
	}

	ok, err := user.IsPasswordMatch(password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xerrors.New(ErrInvalidCredentials)
	}
	if !user.IsActive {
		return nil, xerrors.New(ErrInactiveAccount)
	}
	return user, nil
}

func (c *Core) RecordLogin(ctx context.Context, user *auth.User) error {
	now := c.now()
	if err := c.models.Users.SetLastLogin(ctx, user.ID, now); err != nil {
		return storeError(err)
	}
	user.LastLogin = &now
	return nil
}

func (c *Core) GetUser(ctx context.Context, id int64) (*auth.User, error) {
	user, err := c.models.Users.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return user, nil
}

func (c *Core) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	user, err := c.models.Users.GetByUsername(ctx, username)
	if err != nil {
		return nil, storeError(err)
	}
	return user, nil
}

// ProfileInput is a partial update; nil fields are left unchanged.
type ProfileInput struct {
	FirstName *string
	LastName  *string
	Bio       *string
	Avatar    *string
}

func (c *Core) UpdateProfile(ctx context.Context, user *auth.User, in ProfileInput) (*auth.User, error) {
	updated := *user
	if in.FirstName != nil {
		updated.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		updated.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Bio != nil {
		updated.Bio = *in.Bio
	}
	if in.Avatar != nil {
		updated.Avatar = strings.TrimSpace(*in.Avatar)
	}

	v := validator.New()
	v.CheckMaxLength(updated.FirstName, 30, "first_name", "Ensure this field has no more than 30 characters.")
	v.CheckMaxLength(updated.LastName, 30, "last_name", "Ensure this field has no more than 30 characters.")
	v.CheckMaxLength(updated.Bio, 500, "bio", "Ensure this field has no more than 500 characters.")
	v.CheckURL(updated.Avatar, "avatar", "Enter a valid URL.")
	if err := validationError(v); err != nil {
		return nil, err
	}

	err := c.inTx(ctx, func(txCtx context.Context) error {
		if err := c.models.Users.Update(txCtx, &updated); err != nil {
			return err
		}
		author, err := c.models.Authors.GetByUserID(txCtx, updated.ID)
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		author.DisplayName = updated.DisplayName()
		return c.models.Authors.Update(txCtx, author)
	})
	if err != nil {
		return nil, storeError(err)
	}
	return &updated, nil
}

func (c *Core) ChangePassword(ctx context.Context, user *auth.User, oldPassword, newPassword string) error {
	v := validator.New()
	v.CheckNotBlank(oldPassword, "old_password", "This field may not be blank.")
	validatePassword(v, "new_password", newPassword)
	if err := validationError(v); err != nil {
		return err
	}

	ok, err := user.IsPasswordMatch(oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return fieldError("old_password", "Old password is incorrect.")
	}

	updated := *user
	if err := updated.SetPassword(newPassword); err != nil {
		return err
	}
	if err := c.models.Users.Update(ctx, &updated); err != nil {
		return storeError(err)
	}
	user.Password = updated.Password

	c.log.Info("password changed", "user_id", user.ID)
	return nil
}

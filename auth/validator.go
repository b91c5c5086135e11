package auth

import (
	"chat-relay/errors"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type RegisterRequest struct {
	Username    string `validate:"required,max=64"`
	Password    string `validate:"required,min=6,max=72"`
	DisplayName string `validate:"max=128"`
}

type LoginRequest struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// ValidateRegister trims the username then applies the field rules.
func ValidateRegister(req RegisterRequest) (RegisterRequest, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := validate.Struct(req); err != nil {
		return req, describe(err)
	}
	return req, nil
}

func ValidateLogin(req LoginRequest) (LoginRequest, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("%w: username and password are required", errors.ErrBadRequest)
	}
	return req, nil
}

func describe(err error) error {
	var fieldErrors validator.ValidationErrors
	if !stderrors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return fmt.Errorf("%w: %v", errors.ErrBadRequest, err)
	}
	first := fieldErrors[0]
	switch first.Field() {
	case "Password":
		return errors.ErrInvalidPassword
	case "Username":
		if first.Tag() == "required" {
			return fmt.Errorf("%w: username cannot be empty", errors.ErrBadRequest)
		}
		return fmt.Errorf("%w: username is too long", errors.ErrBadRequest)
	default:
		return fmt.Errorf("%w: invalid %s", errors.ErrBadRequest, strings.ToLower(first.Field()))
	}
}

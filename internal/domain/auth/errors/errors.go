package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument           = errors.New("invalid argument")
	ErrInternal                  = errors.New("internal error")
	ErrNotFound                  = errors.New("not found")
	ErrInvalidCredentials        = errors.New("invalid credentials")
	ErrAlreadyExists             = errors.New("already exists")
	ErrInvalidToken              = errors.New("invalid token")
	ErrUnauthorized              = errors.New("unauthorized")
	ErrPasswordMismatch          = errors.New("passwords do not match")
	ErrInvalidFederatedAssertion = errors.New("invalid federated assertion")
	ErrInvalidOrExpiredToken     = errors.New("invalid or expired token")
)

func NewInvalidArgument(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

func WrapInternal(err error, context string) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, context, err)
}

func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsPasswordMismatch(err error) bool {
	return errors.Is(err, ErrPasswordMismatch)
}

func IsInvalidFederatedAssertion(err error) bool {
	return errors.Is(err, ErrInvalidFederatedAssertion)
}

func IsInvalidOrExpiredToken(err error) bool {
	return errors.Is(err, ErrInvalidOrExpiredToken)
}

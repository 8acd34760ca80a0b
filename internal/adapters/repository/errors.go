package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound       = errors.New("record not found")
	ErrAlreadyExists  = errors.New("record already exists")
	ErrInvalidRecord  = errors.New("invalid record")
	ErrUnknownDriver  = errors.New("unsupported database driver")
	ErrInvalidPageArg = errors.New("invalid page arguments")
)

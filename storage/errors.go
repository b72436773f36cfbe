package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned when a retrieved key does not exist in the
	// database. Note the difference to badger.ErrKeyNotFound: the badger
	// error is returned by the badger API, while modules in storage/badger
	// and storage/badger/operation return ErrNotFound.
	ErrNotFound = errors.New("key not found")

	// ErrAlreadyExists is returned when an inserted key already exists.
	ErrAlreadyExists = errors.New("key already exists")
)

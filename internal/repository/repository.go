// Package repository holds the errors shared by the Job Record Store
// implementations.
package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

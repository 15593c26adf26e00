package repository

import "errors"

// Package repository contains data access layer abstractions.
// Implementations live in subpackages: postgres for production, memory for local runs and tests.

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an insert collides with an existing row.
	ErrConflict = errors.New("record already exists")
	// ErrLimitExceeded is returned by conditional quota updates that would cross a limit.
	ErrLimitExceeded = errors.New("quota limit would be exceeded")
	// ErrStale is returned by conditional updates whose expected revision no longer matches.
	ErrStale = errors.New("record changed concurrently")
)

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}

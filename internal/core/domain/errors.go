package domain

import "errors"

// ErrBatchNotFound is returned when no batch matches a lookup
var ErrBatchNotFound = errors.New("batch not found")

// ErrBatchNotFailed is returned when requeueing a batch that has not failed
var ErrBatchNotFailed = errors.New("batch is not in failed state")

package storage

import "errors"

var (
	ErrQdrantUnreachable = errors.New("qdrant server unreachable")
	ErrManualNotFound    = errors.New("manual not found")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

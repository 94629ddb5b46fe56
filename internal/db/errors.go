package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrIndexNotFound = errors.New("db: index not found")
	ErrBadQuery      = errors.New("db: query syntax rejected")
)

// Op constants map to Redis command names for error context.
const (
	OpSearch    = "FT.SEARCH"
	OpSAdd      = "SADD"
	OpSRem      = "SREM"
	OpSIsMember = "SISMEMBER"
	OpSCard     = "SCARD"
	OpDel       = "DEL"
	OpExpire    = "EXPIRE"
	OpHSet      = "HSET"
	OpHGetAll   = "HGETALL"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

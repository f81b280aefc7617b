package constants

import "github.com/go-playground/validator/v10"

type contextKey int

const (
	PoolKey contextKey = iota
	TxKey
	LoggerKey
	ActorKey
	RequestIDKey
)

var Validate = validator.New(validator.WithRequiredStructEnabled())

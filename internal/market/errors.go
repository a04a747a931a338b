package market

import "errors"

var (
	ErrUnknownInstrument  = errors.New("unknown instrument")
	ErrInstrumentInactive = errors.New("instrument inactive")
	ErrInvalidPrice       = errors.New("price must be positive")
)

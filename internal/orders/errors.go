package orders

import "errors"

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrInvalidSide     = errors.New("invalid trade side")
	ErrInvalidType     = errors.New("invalid order type")
	ErrInvalidLimit    = errors.New("limit price must be positive")
	ErrLimitNotMet     = errors.New("limit not met")
	ErrStore           = errors.New("store failure")
)

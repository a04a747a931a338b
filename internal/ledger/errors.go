package ledger

import "errors"

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrLockTimeout        = errors.New("ledger busy: lock wait exceeded")
)

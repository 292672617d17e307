package domain

import "errors"

var (
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrWalletExists         = errors.New("wallet already exists")
	ErrWalletInactive       = errors.New("wallet is inactive")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrAlreadySettled       = errors.New("transaction already settled")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidPin           = errors.New("invalid pin")
	ErrPinNotSet            = errors.New("wallet pin not set")
	ErrReferenceConflict    = errors.New("reference already used")
	ErrSettlementInProgress = errors.New("settlement already in progress")
)

package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidCredential     = errors.New("invalid credential")
	ErrInsufficientCredit    = errors.New("no credits remaining")
	ErrNoEligibleSource      = errors.New("no eligible source image")
	ErrRemoteRequest         = errors.New("remote request failed")
	ErrRemoteRejected        = errors.New("remote rejected request")
	ErrInvalidRemoteResponse = errors.New("invalid remote response")
	ErrAssetPersistence      = errors.New("asset persistence failed")
)

package model

import "errors"

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrShopClosed         = errors.New("shop closed")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrOutOfStock         = errors.New("out of stock")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrDisplaySyncFailed  = errors.New("display sync failed")
)

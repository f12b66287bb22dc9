package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrNotTracked       = errors.New("symbol not tracked")
	ErrMalformedMessage = errors.New("malformed message")
	ErrStaleBook        = errors.New("stale book: sequence gap detected")
	ErrBookCorruption   = errors.New("book corruption: crossed book")
	ErrServiceStopped   = errors.New("service stopped")
	ErrWSDisconnect     = errors.New("websocket disconnected")
	ErrRateLimited      = errors.New("rate limited")
)

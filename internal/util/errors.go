package util

import "errors"

var (
	ErrUnauthorized = errors.New("upstream authorization failed")
	ErrUpstream     = errors.New("upstream unavailable")
	ErrRateLimited  = errors.New("upstream rate limited")
)

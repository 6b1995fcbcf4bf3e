package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"examsearch/internal/util"
)

type ErrorType string

const (
	ErrorUnauthorized ErrorType = "unauthorized"
	ErrorRate         ErrorType = "rate"
	ErrorTransient    ErrorType = "transient"
	ErrorPermanent    ErrorType = "permanent"
)

// StatusError is a non-2xx answer from an upstream API.
type StatusError struct {
	API  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error %d: %s", e.API, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden:
		return util.ErrUnauthorized
	case e.Code == http.StatusTooManyRequests:
		return util.ErrRateLimited
	default:
		return util.ErrUpstream
	}
}

func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case errors.Is(se, util.ErrUnauthorized):
			return ErrorUnauthorized
		case errors.Is(se, util.ErrRateLimited):
			return ErrorRate
		case se.Code >= 500:
			return ErrorTransient
		default:
			return ErrorPermanent
		}
	}
	switch {
	case errors.Is(err, util.ErrUnauthorized):
		return ErrorUnauthorized
	case errors.Is(err, util.ErrRateLimited):
		return ErrorRate
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTransient
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "rate"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"), strings.Contains(e, "connection refused"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

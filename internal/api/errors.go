package api

import (
	"errors"
	"net/http"
	"strings"

	"examsearch/internal/providers"

	"github.com/danielgtaylor/huma/v2"
)

func init() {
	huma.NewError = newAPIError
}

// apiError is the envelope every failed request answers with:
// {"error": {"code": "ES-API-4004", "message": "..."}}.
type apiError struct {
	status int
	Body   errorBody `json:"error"`
}

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *apiError) Error() string  { return e.Body.Message }
func (e *apiError) GetStatus() int { return e.status }

func newAPIError(status int, msg string, errs ...error) huma.StatusError {
	body := toAPIError(status, msg, errors.Join(errs...))
	if status >= 400 && status < 500 {
		for _, err := range errs {
			if err != nil {
				body.Details = append(body.Details, err.Error())
			}
		}
	}
	return &apiError{status: status, Body: body}
}

func toAPIError(status int, msg string, err error) errorBody {
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status == http.StatusBadGateway:
		return errorBody{Code: "ES-API-5020", Message: orDefault(msg, "Upstream document source unavailable. Retry shortly.")}
	case status == http.StatusServiceUnavailable:
		return errorBody{Code: "ES-API-5030", Message: orDefault(msg, "Service temporarily unavailable.")}
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return errorBody{Code: "ES-DB-5001", Message: "Cache schema is not initialized. Restart the service and retry."}
		case strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return errorBody{Code: "ES-DB-5002", Message: "Cache database is unavailable. Check local services and retry."}
		default:
			return errorBody{Code: "ES-API-5000", Message: "Internal server error. Please retry or check service logs."}
		}
	case status == http.StatusBadRequest:
		return errorBody{Code: "ES-API-4001", Message: orDefault(msg, "Invalid request. Check inputs and retry.")}
	case status == http.StatusUnauthorized:
		return errorBody{Code: "ES-API-4010", Message: orDefault(msg, "Sign in again and retry.")}
	case status == http.StatusForbidden:
		return errorBody{Code: "ES-API-4030", Message: orDefault(msg, "Access to the exam folder was denied.")}
	case status == http.StatusNotFound:
		return errorBody{Code: "ES-API-4004", Message: orDefault(msg, "Requested resource was not found.")}
	case status == http.StatusMethodNotAllowed:
		return errorBody{Code: "ES-API-4005", Message: "This endpoint does not support the requested method."}
	case status == http.StatusConflict:
		return errorBody{Code: "ES-API-4009", Message: orDefault(msg, "Operation conflicts with current state. Retry after checking status.")}
	case status == http.StatusUnprocessableEntity:
		return errorBody{Code: "ES-API-4220", Message: orDefault(msg, "Request body failed validation.")}
	default:
		return errorBody{Code: "ES-API-4000", Message: orDefault(msg, "Request failed.")}
	}
}

// upstreamError maps a failed index build onto an HTTP error.
func upstreamError(err error) error {
	switch providers.ClassifyError(err) {
	case providers.ErrorUnauthorized:
		return huma.Error401Unauthorized("The document source rejected the credentials. Sign in again.", err)
	case providers.ErrorRate:
		return huma.Error503ServiceUnavailable("The document source is rate limiting requests. Retry shortly.", err)
	default:
		return huma.Error502BadGateway("", err)
	}
}

func orDefault(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}

package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var EmptyRequestBodyResponse = Response{
	Status:     StatusError,
	StatusCode: http.StatusBadRequest,
	Error:      "Empty Request Body",
	Message:    "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status:     StatusError,
	StatusCode: http.StatusBadRequest,
	Error:      "Bad Request",
	Message:    "Invalid request body. Please check your input.",
}

var InvalidURLResponse = Response{
	Status:     StatusError,
	StatusCode: http.StatusBadRequest,
	Error:      "Invalid URL",
	Message:    "The URL must start with http:// or https://.",
}

var AliasTakenResponse = Response{
	Status:     StatusError,
	StatusCode: http.StatusConflict,
	Error:      "Alias Taken",
	Message:    "The requested short code is already in use.",
}

var RateLimitedResponse = Response{
	Status:     StatusError,
	StatusCode: http.StatusTooManyRequests,
	Error:      "Too Many Requests",
	Message:    "Too many short links created recently. Please try again later.",
}

var ResourceNotFoundResponse = Response{
	Status:     StatusError,
	StatusCode: http.StatusNotFound,
	Error:      "Resource Not Found",
	Message:    "The requested resource was not found.",
}

var ServerErrorResponse = Response{
	Status:     StatusError,
	StatusCode: http.StatusInternalServerError,
	Error:      "Server Error",
	Message:    "An internal server error occurred. Please try again later.",
}

type Response struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message"`
	Details    []any  `json:"details,omitempty"`
}

// InvalidAliasResponse reports a rejected custom alias with the reason in the message.
func InvalidAliasResponse(reason string) Response {
	return Response{
		Status:     StatusError,
		StatusCode: http.StatusBadRequest,
		Error:      "Invalid Alias",
		Message:    reason,
	}
}

func ValidationErrorResponse(err error) Response {
	resp := Response{
		Status:     StatusError,
		StatusCode: http.StatusBadRequest,
		Error:      "Validation Error",
		Message:    "Request body contains invalid fields.",
	}

	for _, e := range getValidationErrors(err) {
		resp.Details = append(resp.Details, e)
	}

	return resp
}

type validationError struct {
	Field string `json:"field"`
	Value any    `json:"value"`
	Issue string `json:"issue"`
}

func getValidationErrors(err error) []validationError {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}

	errs := make([]validationError, 0, len(validationErrs))

	for _, e := range validationErrs {
		errs = append(errs, validationError{
			Field: e.Field(),
			Value: e.Value(),
			Issue: messageForTag(e),
		})
	}

	return errs
}

func messageForTag(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required."
	case "url", "http_url":
		return "Invalid url."
	case "alphanum":
		return "Only letters and digits are allowed."
	case "max":
		return fmt.Sprintf("Must be at most %s characters long.", e.Param())
	default:
		return fmt.Sprintf("Failed on the %q rule.", e.Tag())
	}
}

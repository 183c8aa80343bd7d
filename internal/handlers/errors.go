package handlers

import (
	"errors"
	"net/http"

	"github.com/example/deepfake-detector/internal/imagecheck"
	"github.com/example/deepfake-detector/internal/imagestore"
	"github.com/example/deepfake-detector/internal/shell"
)

// MapHTTPStatus maps domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, imagecheck.ErrEmpty), errors.Is(err, imagecheck.ErrCorrupt):
		return http.StatusBadRequest
	case errors.Is(err, imagecheck.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imagecheck.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, imagestore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shell.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

// APIError is the single error shape every failed remote call collapses to.
// StatusCode is zero for transport-level failures that never produced a
// response.
type APIError struct {
	Message    string          `json:"message"`
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("network error: %s", e.Message)
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	var api *APIError
	return errors.As(err, &api) && api.StatusCode == 404
}

package withings

import (
	"errors"
	"fmt"
)

// ErrUnavailable wraps transport failures: timeouts, refused connections and
// unreadable bodies.
var ErrUnavailable = errors.New("withings unavailable")

// RemoteAPIError is returned when Withings answers with a non-2xx HTTP status,
// a non-zero envelope status, or an envelope that cannot be read.
type RemoteAPIError struct {
	Action     string
	Message    string
	Status     int // envelope status, -1 when absent
	HTTPStatus int
}

func (e *RemoteAPIError) Error() string {
	if e.HTTPStatus != 0 && (e.HTTPStatus < 200 || e.HTTPStatus > 299) {
		return fmt.Sprintf("withings %s: http %d: %s", e.Action, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("withings %s: status %d: %s", e.Action, e.Status, e.Message)
}

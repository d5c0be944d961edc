package upstream

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTransport wraps network and HTTP level failures.
var ErrTransport = errors.New("upstream: transport failure")

// RemoteError is a fault reported by the upstream RPC layer.
type RemoteError struct {
	Code    int
	Name    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("upstream: %s: %s", e.Name, e.Message)
	}
	return fmt.Sprintf("upstream: rpc error %d: %s", e.Code, e.Message)
}

// IsAccessDenied reports whether err is a permission fault.
func IsAccessDenied(err error) bool {
	var rErr *RemoteError
	if !errors.As(err, &rErr) {
		return false
	}
	return strings.HasSuffix(rErr.Name, "AccessError") || strings.HasSuffix(rErr.Name, "AccessDenied")
}

// IsMissingModel reports whether err says the model is not installed.
func IsMissingModel(err error) bool {
	var rErr *RemoteError
	if !errors.As(err, &rErr) {
		return false
	}
	return strings.Contains(rErr.Message, "doesn't exist") ||
		(strings.Contains(rErr.Message, "Object ") && strings.Contains(rErr.Message, "not found"))
}

// IsUserError reports whether the upstream rejected the input itself, as
// opposed to failing.
func IsUserError(err error) bool {
	var rErr *RemoteError
	if !errors.As(err, &rErr) {
		return false
	}
	return strings.HasSuffix(rErr.Name, "UserError") || strings.HasSuffix(rErr.Name, "ValidationError")
}

package isolate

import (
	"errors"
	"fmt"
)

// boxFailedError is an isolate failure that is not the judged program's fault.
type boxFailedError struct {
	ErrorLogs  string
	StatusCode int
}

func (r *boxFailedError) Error() string {
	return fmt.Sprintf("isolate failed(%d): %s", r.StatusCode, r.ErrorLogs)
}

var ErrInvalidMeta = errors.New("invalid meta file")

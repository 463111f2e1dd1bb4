package aggregator

import (
	"fmt"
	"strings"
)

// AllServersFailedError is returned by Start when every configured server
// failed to come up. An orchestrator with zero tools is indistinguishable
// from a misconfiguration, so this escalates instead of silently succeeding.
type AllServersFailedError struct {
	Failures []ServerFailure
}

func (e *AllServersFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Name, f.Err))
	}
	return fmt.Sprintf("all %d tool servers failed to start: %s", len(e.Failures), strings.Join(parts, "; "))
}

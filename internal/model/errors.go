package model

import "fmt"

// ScanErrorKind classifies terminal scan failures.
type ScanErrorKind string

const (
	KindInvalidTarget ScanErrorKind = "invalid_target"
	KindBrowserLaunch ScanErrorKind = "browser_launch"
	KindNavigation    ScanErrorKind = "navigation"
)

// ScanError is returned when a scan cannot produce a result. It is never
// retried; the reason is surfaced to the caller verbatim.
type ScanError struct {
	Kind   ScanErrorKind
	Target string
	Err    error
}

func (e *ScanError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Target, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Reason is the user-facing failure message.
func (e *ScanError) Reason() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

package domain

import (
	"fmt"
	"time"
)

// InvalidRangeError reports an extraction window whose start is after its end.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid extraction window: start %s is after end %s",
		e.Start.Format(time.DateTime), e.End.Format(time.DateTime))
}

// ResponseDecodeError reports a source API response that was not valid JSON.
// Both status codes are kept since either request may be the culprit.
type ResponseDecodeError struct {
	DataStatus int
	MetaStatus int
	Err        error
}

func (e *ResponseDecodeError) Error() string {
	return fmt.Sprintf("decode source response (data status %d, metadata status %d): %v",
		e.DataStatus, e.MetaStatus, e.Err)
}

func (e *ResponseDecodeError) Unwrap() error { return e.Err }

// LookupError reports that no forecast data exists for a municipality and branch.
type LookupError struct {
	MunicipalityNum int
	Branch          int
	Err             error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no data for municipality %d and branch %d: %v", e.MunicipalityNum, e.Branch, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

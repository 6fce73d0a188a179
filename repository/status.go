package repository

import (
	"time"
)

// Success records the last time a URL was verified successfully.
type Success struct {
	Timestamp time.Time `json:"timestamp"`
}

// Failure records the last failed verification of a URL.
type Failure struct {
	Timestamp time.Time `json:"timestamp"`
	Code      *int      `json:"code"`
	Message   *string   `json:"message"`
}

// StatusEntry is the verification history of one URL. Entries are values:
// every outcome produces a new entry that replaces the stored one.
type StatusEntry struct {
	Success *Success `json:"success"`
	Error   *Failure `json:"error"`
}

// Status maps a URL to its verification history.
type Status map[string]StatusEntry

// WithSuccess returns a copy of e recording a success at now. The previous
// error, if any, is kept for history.
func (e StatusEntry) WithSuccess(now time.Time) StatusEntry {
	return StatusEntry{
		Success: &Success{Timestamp: now.UTC()},
		Error:   e.Error,
	}
}

// WithError returns a copy of e recording a failure at now. A code of 0 and
// an empty message are stored as null.
func (e StatusEntry) WithError(now time.Time, code int, message string) StatusEntry {
	f := &Failure{Timestamp: now.UTC()}
	if code != 0 {
		f.Code = &code
	}
	if message != "" {
		f.Message = &message
	}
	return StatusEntry{
		Success: e.Success,
		Error:   f,
	}
}

// Succeeded reports whether the latest recorded outcome is a success.
func (e StatusEntry) Succeeded() bool {
	if e.Success == nil {
		return false
	}
	if e.Error == nil {
		return true
	}
	return e.Success.Timestamp.After(e.Error.Timestamp)
}

// Failed reports whether the latest recorded outcome is a failure.
func (e StatusEntry) Failed() bool {
	return e.Error != nil && !e.Succeeded()
}

// Fresh reports whether the entry succeeded within window before now.
func (e StatusEntry) Fresh(now time.Time, window time.Duration) bool {
	if !e.Succeeded() {
		return false
	}
	return now.Sub(e.Success.Timestamp) < window
}

// NeedsProbe reports whether a crawl should verify the URL again. URLs
// without a success are always probed. Successful URLs are probed again
// only when revalidate is set and the success is older than window.
func (e StatusEntry) NeedsProbe(now time.Time, window time.Duration, revalidate bool) bool {
	if !e.Succeeded() {
		return true
	}
	return revalidate && !e.Fresh(now, window)
}

func (s Status) clone() Status {
	out := make(Status, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

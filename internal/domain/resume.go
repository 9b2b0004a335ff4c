package domain

import "time"

// ResumeTarget is where to send the user after an authentication round trip.
type ResumeTarget struct {
	Path      string    `json:"path"`
	Query     string    `json:"query,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// URL returns the path with its query string, if any.
func (r ResumeTarget) URL() string {
	if r.Query == "" {
		return r.Path
	}
	if r.Query[0] == '?' {
		return r.Path + r.Query
	}
	return r.Path + "?" + r.Query
}

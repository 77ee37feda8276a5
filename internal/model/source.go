package model

import "time"

// QuotaLimit caps requests per window. Window is a cron expression or descriptor
// ("@every 1m", "@daily", "0 0 * * *") marking where each window starts.
type QuotaLimit struct {
	Ceiling int    `yaml:"ceiling" json:"ceiling"`
	Window  string `yaml:"window" json:"window"`
}

// SourceDescriptor decides trial order and eligibility of a data source.
type SourceDescriptor struct {
	Name               string       `json:"name"`
	Priority           int          `json:"priority"`
	RequiresCredential bool         `json:"requires_credential"`
	Limits             []QuotaLimit `json:"limits,omitempty"`
}

// QuotaUsage is the live state of one quota limit.
type QuotaUsage struct {
	Ceiling   int       `json:"ceiling"`
	Window    string    `json:"window"`
	Used      int       `json:"used"`
	Pending   int       `json:"pending"`
	ResetsAt  time.Time `json:"resets_at"`
	Exhausted bool      `json:"exhausted"`
}

// SourceStatus is a point-in-time report for one configured source.
type SourceStatus struct {
	Descriptor SourceDescriptor `json:"descriptor"`
	Configured bool             `json:"configured"`
	Quota      []QuotaUsage     `json:"quota,omitempty"`
	LastError  string           `json:"last_error,omitempty"`
	LastOK     time.Time        `json:"last_ok,omitempty"`
}

package service

import (
	"fmt"
	"time"
)

// AssigneePolicy decides what happens when a draft or patch names an
// assignee username that does not exist.
type AssigneePolicy string

const (
	// AssigneeReject fails the mutation with a user NotFound error.
	AssigneeReject AssigneePolicy = "reject"
	// AssigneeIgnore leaves the bug unassigned.
	AssigneeIgnore AssigneePolicy = "ignore"
)

// ReporterPolicy decides what happens to bugs reported by a user being deleted.
type ReporterPolicy string

const (
	// ReporterReject refuses the deletion with a Conflict while any reported bug exists.
	ReporterReject ReporterPolicy = "reject"
	// ReporterCascade deletes the user's reported bugs together with the user.
	ReporterCascade ReporterPolicy = "cascade"
)

func ParseAssigneePolicy(s string) (AssigneePolicy, error) {
	switch p := AssigneePolicy(s); p {
	case AssigneeReject, AssigneeIgnore:
		return p, nil
	}
	return "", fmt.Errorf("unknown assignee policy %q", s)
}

func ParseReporterPolicy(s string) (ReporterPolicy, error) {
	switch p := ReporterPolicy(s); p {
	case ReporterReject, ReporterCascade:
		return p, nil
	}
	return "", fmt.Errorf("unknown reporter delete policy %q", s)
}

// BugOptions tunes BugService. Zero values fall back to the defaults below.
type BugOptions struct {
	ListTTL        time.Duration
	StatsTTL       time.Duration
	BugTTL         time.Duration
	AssigneePolicy AssigneePolicy
}

const (
	DefaultListTTL  = time.Minute
	DefaultStatsTTL = 5 * time.Minute
	DefaultBugTTL   = time.Minute
)

func (o BugOptions) withDefaults() BugOptions {
	if o.ListTTL <= 0 {
		o.ListTTL = DefaultListTTL
	}
	if o.StatsTTL <= 0 {
		o.StatsTTL = DefaultStatsTTL
	}
	if o.BugTTL <= 0 {
		o.BugTTL = DefaultBugTTL
	}
	if o.AssigneePolicy == "" {
		o.AssigneePolicy = AssigneeReject
	}
	return o
}

// now is the service clock: UTC truncated to the millisecond precision the
// document store keeps, so a stored timestamp reads back unchanged.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

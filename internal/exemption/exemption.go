// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package exemption manages time-bound policy exemptions: single and
// bulk creation or removal, and reporting of exemptions that have
// expired or are about to.
package exemption

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/juju/errors"
)

// Category is the reason an exemption was granted.
type Category string

const (
	// CategoryWaiver exempts a scope that is knowingly non-compliant.
	CategoryWaiver Category = "Waiver"

	// CategoryMitigated exempts a scope whose policy intent is met
	// through other means.
	CategoryMitigated Category = "Mitigated"
)

// ParseCategory returns the category named by s, ignoring case.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "waiver":
		return CategoryWaiver, nil
	case "mitigated":
		return CategoryMitigated, nil
	}
	return "", errors.NotValidf("exemption category %q (expected Waiver or Mitigated)", s)
}

// Validate returns an error if c is not a known category.
func (c Category) Validate() error {
	switch c {
	case CategoryWaiver, CategoryMitigated:
		return nil
	}
	return errors.NotValidf("exemption category %q", string(c))
}

// Record is a single policy exemption.
type Record struct {
	Name         string
	Scope        string
	AssignmentID string
	Category     Category

	// ExpiresOn is nil for an exemption that never expires.
	ExpiresOn *time.Time

	DisplayName  string
	Description  string
	ReferenceIDs []string
	Metadata     map[string]string
}

// Validate checks that the record can be submitted.
func (r Record) Validate() error {
	if r.Name == "" {
		return errors.NotValidf("exemption without name")
	}
	if r.Scope == "" {
		return errors.NotValidf("exemption %q without scope", r.Name)
	}
	if !strings.HasPrefix(r.Scope, "/") {
		return errors.NotValidf("exemption %q scope %q", r.Name, r.Scope)
	}
	if r.AssignmentID == "" {
		return errors.NotValidf("exemption %q without policy assignment", r.Name)
	}
	if err := r.Category.Validate(); err != nil {
		return errors.Annotatef(err, "exemption %q", r.Name)
	}
	return nil
}

// Ref identifies an exemption to remove.
type Ref struct {
	Name  string
	Scope string

	// Line is the source line when read from a file.
	Line int
}

// Validate checks that the reference names an exemption at a scope.
func (r Ref) Validate() error {
	if r.Name == "" {
		return errors.NotValidf("exemption without name")
	}
	if !strings.HasPrefix(r.Scope, "/") {
		return errors.NotValidf("exemption %q scope %q", r.Name, r.Scope)
	}
	return nil
}

// Scope is a parsed ARM scope path.
type Scope struct {
	SubscriptionID string
	ResourceGroup  string
}

// ParseScope extracts the subscription and resource group named by an
// ARM scope path. Either may be empty, for instance for a management
// group scope.
func ParseScope(scope string) Scope {
	var s Scope
	parts := strings.Split(strings.Trim(scope, "/"), "/")
	for i := 0; i+1 < len(parts); i += 2 {
		switch strings.ToLower(parts[i]) {
		case "subscriptions":
			s.SubscriptionID = parts[i+1]
		case "resourcegroups":
			s.ResourceGroup = parts[i+1]
		case "providers":
			return s
		}
	}
	return s
}

// Status is the expiry classification of an exemption.
type Status string

const (
	StatusExpired      Status = "EXPIRED"
	StatusExpiringSoon Status = "EXPIRING SOON"
	StatusActive       Status = "ACTIVE"
	StatusNoExpiry     Status = "NO EXPIRY"
)

// DefaultWindow is how far ahead of its expiry an exemption is reported
// as expiring soon.
const DefaultWindow = 30 * 24 * time.Hour

// Classify labels an expiry relative to now. An exemption expiring
// exactly now has expired; one expiring exactly at the end of the window
// is expiring soon.
func Classify(expiresOn *time.Time, now time.Time, window time.Duration) Status {
	switch {
	case expiresOn == nil:
		return StatusNoExpiry
	case !expiresOn.After(now):
		return StatusExpired
	case !expiresOn.After(now.Add(window)):
		return StatusExpiringSoon
	default:
		return StatusActive
	}
}

// ReportEntry is one line of an exemption report.
type ReportEntry struct {
	Name         string     `json:"name" yaml:"name"`
	Scope        string     `json:"scope" yaml:"scope"`
	Category     Category   `json:"category" yaml:"category"`
	ExpiresOn    *time.Time `json:"expires-on,omitempty" yaml:"expires-on,omitempty"`
	Status       Status     `json:"status" yaml:"status"`
	DisplayName  string     `json:"display-name,omitempty" yaml:"display-name,omitempty"`
	AssignmentID string     `json:"assignment-id" yaml:"assignment-id"`
}

// sortEntries orders entries by expiry, soonest first, with exemptions
// that never expire last.
func sortEntries(entries []ReportEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].ExpiresOn, entries[j].ExpiresOn
		switch {
		case a == nil && b == nil:
			return entries[i].Name < entries[j].Name
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		}
		return entries[i].Name < entries[j].Name
	})
}

// BulkItem is the outcome of one item of a bulk operation.
type BulkItem struct {
	Line  int
	Name  string
	Scope string
	Err   error
}

func (i BulkItem) String() string {
	where := i.Name
	if where == "" {
		where = "<unnamed>"
	}
	if i.Line > 0 {
		where = fmt.Sprintf("line %d: %s", i.Line, where)
	}
	if i.Err != nil {
		return fmt.Sprintf("%s: %v", where, i.Err)
	}
	return where
}

// BulkResult collects the outcome of every item of a bulk operation.
type BulkResult struct {
	Items []BulkItem
}

// Failed returns the items that failed.
func (r BulkResult) Failed() []BulkItem {
	var failed []BulkItem
	for _, item := range r.Items {
		if item.Err != nil {
			failed = append(failed, item)
		}
	}
	return failed
}

// Succeeded returns the number of items that succeeded.
func (r BulkResult) Succeeded() int {
	return len(r.Items) - len(r.Failed())
}

// Err returns an error summarising the failed items, or nil if every
// item succeeded.
func (r BulkResult) Err() error {
	failed := len(r.Failed())
	if failed == 0 {
		return nil
	}
	return errors.Errorf("%d of %d exemptions failed", failed, len(r.Items))
}

// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package exemption

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("azops.exemption")

//go:generate go run go.uber.org/mock/mockgen -package exemption -destination api_mock_test.go github.com/juju/azops/internal/exemption ExemptionsAPI,ResourceGroupChecker

// ExemptionsAPI is the subset of the policy exemptions API used by the
// Manager.
type ExemptionsAPI interface {
	// CreateOrUpdate creates or replaces the exemption.
	CreateOrUpdate(ctx context.Context, r Record) (*Record, error)

	// Delete removes the named exemption at scope.
	Delete(ctx context.Context, scope, name string) error

	// List returns the exemptions of the subscription, or of the
	// resource group when one is given.
	List(ctx context.Context, resourceGroup string) ([]Record, error)
}

// ResourceGroupChecker reports whether a resource group exists.
type ResourceGroupChecker interface {
	ResourceGroupExists(ctx context.Context, subscriptionID, name string) (bool, error)
}

// ManagerConfig holds the dependencies of a Manager.
type ManagerConfig struct {
	API            ExemptionsAPI
	ResourceGroups ResourceGroupChecker
	Clock          clock.Clock

	// Window is the expiring-soon window used by Report. DefaultWindow
	// is used when zero.
	Window time.Duration
}

// Validate checks the config.
func (c ManagerConfig) Validate() error {
	if c.API == nil {
		return errors.NotValidf("nil API")
	}
	if c.ResourceGroups == nil {
		return errors.NotValidf("nil ResourceGroups")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Window < 0 {
		return errors.NotValidf("negative Window")
	}
	return nil
}

// Manager creates, removes and reports policy exemptions.
type Manager struct {
	config  ManagerConfig
	newName func() string
}

// NewManager returns a Manager for the given config.
func NewManager(config ManagerConfig) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.Window == 0 {
		config.Window = DefaultWindow
	}
	return &Manager{
		config:  config,
		newName: generateName,
	}, nil
}

func generateName() string {
	return "exemption-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ExpiresIn returns the expiry of an exemption lasting the given number
// of days from now.
func (m *Manager) ExpiresIn(days int) time.Time {
	return m.config.Clock.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)
}

// Create submits a single exemption. When the scope lies within a
// resource group, the group must exist.
func (m *Manager) Create(ctx context.Context, r Record) (*Record, error) {
	if err := r.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if r.ExpiresOn != nil && !r.ExpiresOn.After(m.config.Clock.Now()) {
		return nil, errors.NotValidf("exemption %q expiry %s in the past", r.Name, r.ExpiresOn.UTC().Format(time.RFC3339))
	}
	scope := ParseScope(r.Scope)
	if scope.ResourceGroup != "" {
		exists, err := m.config.ResourceGroups.ResourceGroupExists(ctx, scope.SubscriptionID, scope.ResourceGroup)
		if err != nil {
			return nil, errors.Annotatef(err, "checking resource group %q", scope.ResourceGroup)
		}
		if !exists {
			return nil, errors.NotFoundf("resource group %q", scope.ResourceGroup)
		}
	}
	logger.Debugf("creating exemption %q at %q", r.Name, r.Scope)
	created, err := m.config.API.CreateOrUpdate(ctx, r)
	if err != nil {
		return nil, errors.Annotatef(err, "creating exemption %q", r.Name)
	}
	return created, nil
}

// Remove deletes a single exemption.
func (m *Manager) Remove(ctx context.Context, ref Ref) error {
	if err := ref.Validate(); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("removing exemption %q at %q", ref.Name, ref.Scope)
	if err := m.config.API.Delete(ctx, ref.Scope, ref.Name); err != nil {
		return errors.Annotatef(err, "removing exemption %q", ref.Name)
	}
	return nil
}

// Row is a record read from a bulk file. Err is set when the row could
// not be parsed.
type Row struct {
	Line   int
	Record Record
	Err    error
}

// Import creates the exemption of every row. A failing row is recorded
// and processing continues with the next. Rows without a name get a
// generated one; a name repeated within the input fails the later rows.
// Notify, if not nil, is called after each row.
func (m *Manager) Import(ctx context.Context, rows []Row, notify func(BulkItem)) BulkResult {
	var result BulkResult
	seen := set.NewStrings()
	for _, row := range rows {
		r := row.Record
		if row.Err == nil && r.Name == "" {
			r.Name = m.newName()
		}
		item := BulkItem{Line: row.Line, Name: r.Name, Scope: r.Scope, Err: row.Err}
		key := strings.ToLower(r.Scope + "|" + r.Name)
		switch {
		case item.Err != nil:
		case ctx.Err() != nil:
			item.Err = errors.Trace(ctx.Err())
		case seen.Contains(key):
			item.Err = errors.AlreadyExistsf("duplicate exemption %q", r.Name)
		default:
			seen.Add(key)
			_, item.Err = m.Create(ctx, r)
		}
		if item.Err != nil {
			logger.Debugf("exemption %s", item)
		}
		result.Items = append(result.Items, item)
		if notify != nil {
			notify(item)
		}
	}
	return result
}

// RemoveAll deletes every referenced exemption, recording failures and
// continuing with the next.
func (m *Manager) RemoveAll(ctx context.Context, refs []Ref, notify func(BulkItem)) BulkResult {
	var result BulkResult
	for _, ref := range refs {
		item := BulkItem{Line: ref.Line, Name: ref.Name, Scope: ref.Scope}
		if err := ctx.Err(); err != nil {
			item.Err = errors.Trace(err)
		} else {
			item.Err = m.Remove(ctx, ref)
		}
		result.Items = append(result.Items, item)
		if notify != nil {
			notify(item)
		}
	}
	return result
}

// ReportParams holds the parameters for Report.
type ReportParams struct {
	// ResourceGroup restricts the report to one resource group.
	ResourceGroup string

	// ExpiringOnly restricts the report to exemptions that have
	// expired or are expiring soon.
	ExpiringOnly bool
}

// Report lists exemptions, classifies their expiry and orders them
// soonest to expire first.
func (m *Manager) Report(ctx context.Context, p ReportParams) ([]ReportEntry, error) {
	records, err := m.config.API.List(ctx, p.ResourceGroup)
	if err != nil {
		return nil, errors.Annotate(err, "listing exemptions")
	}
	now := m.config.Clock.Now()
	entries := make([]ReportEntry, 0, len(records))
	for _, r := range records {
		status := Classify(r.ExpiresOn, now, m.config.Window)
		if p.ExpiringOnly && status != StatusExpired && status != StatusExpiringSoon {
			continue
		}
		entries = append(entries, ReportEntry{
			Name:         r.Name,
			Scope:        r.Scope,
			Category:     r.Category,
			ExpiresOn:    r.ExpiresOn,
			Status:       status,
			DisplayName:  r.DisplayName,
			AssignmentID: r.AssignmentID,
		})
	}
	sortEntries(entries)
	logger.Debugf("report has %d of %d exemptions", len(entries), len(records))
	return entries, nil
}

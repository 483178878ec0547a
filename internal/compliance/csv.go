// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package compliance

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/juju/errors"
)

// StatesHeader is the header row written by WriteStatesCSV. The names
// are those of the policy states API.
var StatesHeader = []string{
	"resourceId",
	"resourceType",
	"resourceGroup",
	"policyDefinitionReferenceId",
	"policyDefinitionId",
	"complianceState",
	"timestamp",
}

// WriteStatesCSV writes states with a header row.
func WriteStatesCSV(w io.Writer, states []State) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StatesHeader); err != nil {
		return errors.Trace(err)
	}
	for _, s := range states {
		timestamp := ""
		if !s.Timestamp.IsZero() {
			timestamp = s.Timestamp.UTC().Format(time.RFC3339)
		}
		row := []string{s.ResourceID, s.ResourceType, s.ResourceGroup, s.ReferenceID, s.DefinitionID, s.Compliance, timestamp}
		if err := cw.Write(row); err != nil {
			return errors.Trace(err)
		}
	}
	cw.Flush()
	return errors.Trace(cw.Error())
}

// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package exemption

import (
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/juju/errors"
)

const (
	colName         = "name"
	colScope        = "scope"
	colAssignmentID = "assignmentid"
	colCategory     = "category"
	colExpiresOn    = "expireson"
	colDisplayName  = "displayname"
	colDescription  = "description"
	colReferenceIDs = "referenceids"
)

// ReportHeader is the header row written by WriteReportCSV.
var ReportHeader = []string{"name", "scope", "category", "expiresOn", "status", "displayName", "assignmentId"}

type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	row, err := r.Read()
	if err == io.EOF {
		return nil, errors.NotValidf("empty CSV file")
	} else if err != nil {
		return nil, errors.Annotate(err, "reading CSV header")
	}
	h := make(header, len(row))
	for i, name := range row {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		h[name] = i
	}
	for _, name := range required {
		if _, ok := h[name]; !ok {
			return nil, errors.NotValidf("CSV header without %q column", name)
		}
	}
	return h, nil
}

func (h header) get(row []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	return cr
}

// ReadRecordsCSV reads exemptions to create. Columns are matched by
// header name, ignoring case and order. A row that cannot be parsed is
// returned with its Err set; an unreadable file or header is an error.
func ReadRecordsCSV(r io.Reader) ([]Row, error) {
	cr := newReader(r)
	h, err := readHeader(cr, colScope, colAssignmentID, colCategory)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var rows []Row
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if perr, ok := err.(*csv.ParseError); ok {
			rows = append(rows, Row{Line: perr.Line, Err: errors.Trace(err)})
			continue
		} else if err != nil {
			return nil, errors.Annotate(err, "reading CSV")
		}
		if isBlank(fields) {
			continue
		}
		line, _ := cr.FieldPos(0)
		row := Row{Line: line}
		row.Record, row.Err = parseRecord(h, fields)
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRecord(h header, fields []string) (Record, error) {
	r := Record{
		Name:         h.get(fields, colName),
		Scope:        h.get(fields, colScope),
		AssignmentID: h.get(fields, colAssignmentID),
		DisplayName:  h.get(fields, colDisplayName),
		Description:  h.get(fields, colDescription),
	}
	category, err := ParseCategory(h.get(fields, colCategory))
	if err != nil {
		return r, errors.Trace(err)
	}
	r.Category = category
	if v := h.get(fields, colExpiresOn); v != "" {
		t, err := ParseExpiry(v)
		if err != nil {
			return r, errors.Trace(err)
		}
		r.ExpiresOn = &t
	}
	for _, id := range strings.Split(h.get(fields, colReferenceIDs), ";") {
		if id = strings.TrimSpace(id); id != "" {
			r.ReferenceIDs = append(r.ReferenceIDs, id)
		}
	}
	return r, nil
}

// ParseExpiry parses an RFC 3339 timestamp or a YYYY-MM-DD date, which
// is taken as midnight UTC.
func ParseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, errors.NotValidf("expiry %q (expected RFC 3339 or YYYY-MM-DD)", s)
	}
	return t.UTC(), nil
}

// ReadRefsCSV reads the exemptions to remove from a file with name and
// scope columns.
func ReadRefsCSV(r io.Reader) ([]Ref, error) {
	cr := newReader(r)
	h, err := readHeader(cr, colName, colScope)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var refs []Ref
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Annotate(err, "reading CSV")
		}
		if isBlank(fields) {
			continue
		}
		line, _ := cr.FieldPos(0)
		refs = append(refs, Ref{
			Name:  h.get(fields, colName),
			Scope: h.get(fields, colScope),
			Line:  line,
		})
	}
	return refs, nil
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// WriteReportCSV writes report entries with a header row.
func WriteReportCSV(w io.Writer, entries []ReportEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReportHeader); err != nil {
		return errors.Trace(err)
	}
	for _, e := range entries {
		expires := ""
		if e.ExpiresOn != nil {
			expires = e.ExpiresOn.UTC().Format(time.RFC3339)
		}
		row := []string{e.Name, e.Scope, string(e.Category), expires, string(e.Status), e.DisplayName, e.AssignmentID}
		if err := cw.Write(row); err != nil {
			return errors.Trace(err)
		}
	}
	cw.Flush()
	return errors.Trace(cw.Error())
}

// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package initiative

import (
	"encoding/json"
	"os"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// Document is the JSON form of a policy set definition, as produced by
// "az policy set-definition show" or by Export.
type Document struct {
	ID         string     `json:"id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Type       string     `json:"type,omitempty"`
	Properties Properties `json:"properties"`
}

// Properties holds the policy set definition properties. Members not
// named here, such as "versions", are kept in Extra and written back
// unchanged.
type Properties struct {
	DisplayName            string                 `json:"displayName,omitempty"`
	Description            string                 `json:"description,omitempty"`
	PolicyType             string                 `json:"policyType,omitempty"`
	Version                string                 `json:"version,omitempty"`
	Metadata               map[string]interface{} `json:"metadata,omitempty"`
	Parameters             json.RawMessage        `json:"parameters,omitempty"`
	PolicyDefinitionGroups json.RawMessage        `json:"policyDefinitionGroups,omitempty"`
	PolicyDefinitions      []Reference            `json:"policyDefinitions"`

	Extra map[string]json.RawMessage `json:"-"`
}

var propertiesMembers = set.NewStrings(
	"displayName", "description", "policyType", "version", "metadata",
	"parameters", "policyDefinitionGroups", "policyDefinitions",
)

// properties has the fields of Properties without its JSON methods.
type properties Properties

// UnmarshalJSON implements json.Unmarshaler.
func (p *Properties) UnmarshalJSON(data []byte) error {
	var plain properties
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	extra, err := otherMembers(data, propertiesMembers)
	if err != nil {
		return err
	}
	plain.Extra = extra
	*p = Properties(plain)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p Properties) MarshalJSON() ([]byte, error) {
	return marshalWithMembers(properties(p), p.Extra)
}

// Reference is a single policy definition included in the set. Members
// not named here, such as "definitionVersion", are kept in Extra.
type Reference struct {
	PolicyDefinitionID          string          `json:"policyDefinitionId"`
	PolicyDefinitionReferenceID string          `json:"policyDefinitionReferenceId,omitempty"`
	Parameters                  json.RawMessage `json:"parameters,omitempty"`
	GroupNames                  []string        `json:"groupNames,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var referenceMembers = set.NewStrings(
	"policyDefinitionId", "policyDefinitionReferenceId", "parameters", "groupNames",
)

type reference Reference

// UnmarshalJSON implements json.Unmarshaler.
func (r *Reference) UnmarshalJSON(data []byte) error {
	var plain reference
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	extra, err := otherMembers(data, referenceMembers)
	if err != nil {
		return err
	}
	plain.Extra = extra
	*r = Reference(plain)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r Reference) MarshalJSON() ([]byte, error) {
	return marshalWithMembers(reference(r), r.Extra)
}

// otherMembers returns the members of the JSON object in data whose
// names are not in known, or nil if there are none.
func otherMembers(data []byte, known set.Strings) (map[string]json.RawMessage, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	for name := range members {
		if known.Contains(name) {
			delete(members, name)
		}
	}
	if len(members) == 0 {
		return nil, nil
	}
	return members, nil
}

// marshalWithMembers marshals v, which must encode as a JSON object,
// and adds the extra members to it.
func marshalWithMembers(v interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	for name, value := range extra {
		if _, ok := members[name]; !ok {
			members[name] = value
		}
	}
	return json.Marshal(members)
}

// ReadDocument reads and validates the policy set document at path.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("policy set document %q", path)
	} else if err != nil {
		return nil, errors.Annotatef(err, "reading policy set document %q", path)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, errors.Annotatef(err, "policy set document %q", path)
	}
	return doc, nil
}

// ParseDocument unmarshals and validates a policy set document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewNotValid(err, "invalid JSON")
	}
	if err := doc.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &doc, nil
}

// Validate checks that the document carries a non-empty list of policy
// definition references, each naming its definition.
func (d *Document) Validate() error {
	if len(d.Properties.PolicyDefinitions) == 0 {
		return errors.NotValidf("document without properties.policyDefinitions")
	}
	for i, ref := range d.Properties.PolicyDefinitions {
		if ref.PolicyDefinitionID == "" {
			return errors.NotValidf("policy definition reference %d without policyDefinitionId", i)
		}
	}
	return nil
}

// Source returns the identity of the definition this document was taken
// from, preferring the full resource id.
func (d *Document) Source() string {
	if d.ID != "" {
		return d.ID
	}
	return d.Name
}

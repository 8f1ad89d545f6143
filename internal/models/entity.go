// Package models defines the domain types for Othala.
package models

import "time"

// Collection names for the six entity kinds in a workspace.
const (
	CollectionProjects  = "projects"
	CollectionTasks     = "tasks"
	CollectionNotes     = "notes"
	CollectionMeetings  = "meetings"
	CollectionCompanies = "companies"
	CollectionPeople    = "people"
)

// Collections lists every entity collection in a stable order.
var Collections = []string{
	CollectionProjects,
	CollectionTasks,
	CollectionNotes,
	CollectionMeetings,
	CollectionCompanies,
	CollectionPeople,
}

// ValidCollection reports whether name is a known entity collection.
func ValidCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// SourceTypes maps a collection to its human-readable document type,
// used when rendering retrieval context for the assistant.
var SourceTypes = map[string]string{
	CollectionProjects:  "Project",
	CollectionTasks:     "Task",
	CollectionNotes:     "Note",
	CollectionMeetings:  "Meeting",
	CollectionCompanies: "Company",
	CollectionPeople:    "Person",
}

// Entity is a schemaless workspace record. Entities originate from external
// storage as JSON documents, so every field access must tolerate missing or
// mistyped values.
type Entity map[string]any

// ID returns the entity identifier, or empty string when absent or mistyped.
func (e Entity) ID() string {
	return e.String("id")
}

// String returns the named field as a string, or empty string when the field
// is absent or not a string.
func (e Entity) String(field string) string {
	if e == nil {
		return ""
	}
	s, _ := e[field].(string)
	return s
}

// StringList returns the named field as a string slice. Non-string elements
// are dropped; a missing or mistyped field yields nil.
func (e Entity) StringList(field string) []string {
	if e == nil {
		return nil
	}
	raw, ok := e[field].([]any)
	if !ok {
		// Already-typed slices appear when the entity was built in process
		// rather than decoded from JSON.
		if typed, ok := e[field].([]string); ok {
			return typed
		}
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Time parses the named field as RFC 3339, returning the zero time when the
// field is absent or unparseable.
func (e Entity) Time(field string) time.Time {
	s := e.String(field)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Touch stamps updatedAt (and createdAt if unset) with now in RFC 3339.
func (e Entity) Touch(now time.Time) {
	stamp := now.UTC().Format(time.RFC3339)
	if e.String("createdAt") == "" {
		e["createdAt"] = stamp
	}
	e["updatedAt"] = stamp
}

// Clone returns a shallow copy of the entity. Relation field slices are
// copied one level deep so callers can mutate them independently.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		if vs, ok := v.([]any); ok {
			cp := make([]any, len(vs))
			copy(cp, vs)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}

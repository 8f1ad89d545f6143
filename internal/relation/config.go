// Package relation keeps many-to-many links between entity collections
// mutually consistent. The planner computes which reverse-link mutations a
// change implies; the runner executes a plan through a storage-specific
// Mutator.
package relation

import "github.com/vheim/othala/internal/models"

// FieldRef identifies one side of a tracked relation and the reverse side it
// maps to. tasks.projectIds reverses to projects.taskIds, and so on.
type FieldRef struct {
	Collection       string `json:"collection"`
	Field            string `json:"field"`
	TargetCollection string `json:"targetCollection"`
	TargetField      string `json:"targetField"`
}

// CleanupSpec identifies a (collection, field) pair whose values may reference
// a deleted entity of some target collection.
type CleanupSpec struct {
	SourceCollection string `json:"sourceCollection"`
	SourceField      string `json:"sourceField"`
}

type reverseRef struct {
	targetCollection string
	targetField      string
}

// fieldOrder fixes iteration order per collection so plans are deterministic.
var fieldOrder = map[string][]string{
	models.CollectionProjects:  {"taskIds", "noteIds", "meetingIds", "companyIds", "personIds"},
	models.CollectionTasks:     {"projectIds", "noteIds", "meetingIds", "personIds"},
	models.CollectionNotes:     {"projectIds", "taskIds", "meetingIds", "companyIds", "personIds", "relatedNoteIds"},
	models.CollectionMeetings:  {"projectIds", "taskIds", "noteIds", "companyIds", "personIds"},
	models.CollectionCompanies: {"projectIds", "noteIds", "meetingIds", "personIds"},
	models.CollectionPeople:    {"projectIds", "taskIds", "noteIds", "meetingIds", "companyIds"},
}

// relationConfig declares the reverse side for every tracked relation field.
// The table must stay symmetric: if a.x targets b.y then b.y targets a.x.
// Fields absent from this table are intentionally untracked (one-directional
// or computed) and are skipped by the planner.
var relationConfig = map[string]map[string]reverseRef{
	models.CollectionProjects: {
		"taskIds":    {models.CollectionTasks, "projectIds"},
		"noteIds":    {models.CollectionNotes, "projectIds"},
		"meetingIds": {models.CollectionMeetings, "projectIds"},
		"companyIds": {models.CollectionCompanies, "projectIds"},
		"personIds":  {models.CollectionPeople, "projectIds"},
	},
	models.CollectionTasks: {
		"projectIds": {models.CollectionProjects, "taskIds"},
		"noteIds":    {models.CollectionNotes, "taskIds"},
		"meetingIds": {models.CollectionMeetings, "taskIds"},
		"personIds":  {models.CollectionPeople, "taskIds"},
	},
	models.CollectionNotes: {
		"projectIds": {models.CollectionProjects, "noteIds"},
		"taskIds":    {models.CollectionTasks, "noteIds"},
		"meetingIds": {models.CollectionMeetings, "noteIds"},
		"companyIds": {models.CollectionCompanies, "noteIds"},
		"personIds":  {models.CollectionPeople, "noteIds"},
		// Self-referential: related notes mirror each other.
		"relatedNoteIds": {models.CollectionNotes, "relatedNoteIds"},
	},
	models.CollectionMeetings: {
		"projectIds": {models.CollectionProjects, "meetingIds"},
		"taskIds":    {models.CollectionTasks, "meetingIds"},
		"noteIds":    {models.CollectionNotes, "meetingIds"},
		"companyIds": {models.CollectionCompanies, "meetingIds"},
		"personIds":  {models.CollectionPeople, "meetingIds"},
	},
	models.CollectionCompanies: {
		"projectIds": {models.CollectionProjects, "companyIds"},
		"noteIds":    {models.CollectionNotes, "companyIds"},
		"meetingIds": {models.CollectionMeetings, "companyIds"},
		"personIds":  {models.CollectionPeople, "companyIds"},
	},
	models.CollectionPeople: {
		"projectIds": {models.CollectionProjects, "personIds"},
		"taskIds":    {models.CollectionTasks, "personIds"},
		"noteIds":    {models.CollectionNotes, "personIds"},
		"meetingIds": {models.CollectionMeetings, "personIds"},
		"companyIds": {models.CollectionCompanies, "personIds"},
	},
}

// Fields returns the tracked relation fields of a collection in declaration
// order. Unknown collections yield nil.
func Fields(collection string) []string {
	return fieldOrder[collection]
}

// Reverse resolves the reverse side of (collection, field). The second return
// is false when the field is not tracked.
func Reverse(collection, field string) (FieldRef, bool) {
	ref, ok := relationConfig[collection][field]
	if !ok {
		return FieldRef{}, false
	}
	return FieldRef{
		Collection:       collection,
		Field:            field,
		TargetCollection: ref.targetCollection,
		TargetField:      ref.targetField,
	}, true
}

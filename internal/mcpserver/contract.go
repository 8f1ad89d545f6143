package mcpserver

// EntityFormatContract describes the canonical JSON entity format that
// LLM consumers should follow when creating or updating entities.
const EntityFormatContract = `# Othala Entity Format Contract

Every entity stored in Othala is one JSON document. The six collections are
projects, tasks, notes, meetings, companies, and people.

## Common fields

` + "```" + `json
{
  "id": "4f2a9c01d3b7e815",
  "createdAt": "2026-01-15T10:00:00Z",
  "updatedAt": "2026-01-20T14:30:00Z"
}
` + "```" + `

- **id** is assigned by the server when omitted. Never invent an id for an
  entity you have not read.
- **createdAt / updatedAt** are RFC 3339 timestamps maintained by the server.
  Do not set them yourself.

## Per-collection fields

- **projects**: name (required), description, status, taskIds, noteIds,
  meetingIds, companyIds, personIds
- **tasks**: title (required), description, status, dueDate, projectIds,
  noteIds, meetingIds, personIds
- **notes**: title (required), content (HTML or plain text), projectIds,
  taskIds, meetingIds, companyIds, personIds, relatedNoteIds
- **meetings**: title (required), date, agenda, notes, transcript,
  projectIds, taskIds, noteIds, companyIds, personIds
- **companies**: name (required), description, industry, projectIds,
  noteIds, meetingIds, personIds
- **people**: name (required), role, email, notes, projectIds, taskIds,
  noteIds, meetingIds, companyIds

## Relations

1. Relation fields (the *Ids lists) hold ids of entities in the collection
   the field is named after: taskIds holds task ids, personIds people ids.
2. Relations are bidirectional. Write one side only; the server mirrors the
   reverse side automatically. Linking a task to a project via projectIds
   also adds the task to the project's taskIds.
3. Deleting an entity removes it from every list that referenced it.
4. Unknown fields are preserved verbatim, so clients may attach their own
   metadata, but only the fields above participate in search and relations.
`

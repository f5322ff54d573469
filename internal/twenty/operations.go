package twenty

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// operation is a parsed GraphQL document with exactly one named operation
type operation struct {
	name  string
	query string
}

func mustOperation(query string) *operation {
	doc, err := parser.ParseQuery(&ast.Source{Name: "twenty", Input: query})
	if err != nil {
		panic(fmt.Sprintf("twenty: invalid GraphQL document: %v", err))
	}
	if len(doc.Operations) != 1 || doc.Operations[0].Name == "" {
		panic("twenty: document must contain exactly one named operation")
	}
	return &operation{name: doc.Operations[0].Name, query: query}
}

const leadFields = `
	id
	name
	phones { primaryPhoneNumber }
	emails { primaryEmail }
	address { addressStreet1 addressCity addressState addressPostcode }
	source
	medium
	stage
	propertyType
	notes
	salesRep
	canvasser
	estValue { amountMicros currencyCode }
	nextFollowUp
	createdAt
	updatedAt
`

const taskFields = `id title body status dueAt createdAt`

const attachmentFields = `id name fullPath type createdAt`

var (
	opListLeads = mustOperation(`query ListLeads($first: Int!, $after: String) {
	leads(first: $first, after: $after) {
		edges { node {` + leadFields + `} }
		pageInfo { hasNextPage endCursor }
	}
}`)

	opGetLead = mustOperation(`query GetLead($id: UUID!) {
	lead(filter: { id: { eq: $id } }) {` + leadFields + `}
}`)

	opCreateLead = mustOperation(`mutation CreateLead($data: LeadCreateInput!) {
	createLead(data: $data) {` + leadFields + `}
}`)

	opUpdateLead = mustOperation(`mutation UpdateLead($id: UUID!, $data: LeadUpdateInput!) {
	updateLead(id: $id, data: $data) {` + leadFields + `}
}`)

	opDeleteLead = mustOperation(`mutation DeleteLead($id: UUID!) {
	deleteLead(id: $id) { id }
}`)

	opNoteTargets = mustOperation(`query NoteTargets($leadId: UUID!) {
	noteTargets(filter: { leadId: { eq: $leadId } }) {
		edges { node { id note { id title body createdAt } } }
	}
}`)

	opCreateNote = mustOperation(`mutation CreateNote($data: NoteCreateInput!) {
	createNote(data: $data) { id title body createdAt }
}`)

	opCreateNoteTarget = mustOperation(`mutation CreateNoteTarget($data: NoteTargetCreateInput!) {
	createNoteTarget(data: $data) { id }
}`)

	opTaskTargets = mustOperation(`query TaskTargets($leadId: UUID!) {
	taskTargets(filter: { leadId: { eq: $leadId } }) {
		edges { node { id task {` + taskFields + `} } }
	}
}`)

	opCreateTask = mustOperation(`mutation CreateTask($data: TaskCreateInput!) {
	createTask(data: $data) {` + taskFields + `}
}`)

	opCreateTaskTarget = mustOperation(`mutation CreateTaskTarget($data: TaskTargetCreateInput!) {
	createTaskTarget(data: $data) { id }
}`)

	opUpdateTask = mustOperation(`mutation UpdateTask($id: UUID!, $data: TaskUpdateInput!) {
	updateTask(id: $id, data: $data) {` + taskFields + `}
}`)

	opAttachments = mustOperation(`query Attachments($leadId: UUID!) {
	attachments(filter: { leadId: { eq: $leadId } }) {
		edges { node {` + attachmentFields + `} }
	}
}`)

	opCreateAttachment = mustOperation(`mutation CreateAttachment($data: AttachmentCreateInput!) {
	createAttachment(data: $data) {` + attachmentFields + `}
}`)

	opUploadFile = mustOperation(`mutation UploadFile($file: Upload!, $fileFolder: FileFolder) {
	uploadFile(file: $file, fileFolder: $fileFolder)
}`)

	opUpdateAttachment = mustOperation(`mutation UpdateAttachment($id: UUID!, $data: AttachmentUpdateInput!) {
	updateAttachment(id: $id, data: $data) {` + attachmentFields + `}
}`)

	opDeleteAttachment = mustOperation(`mutation DeleteAttachment($id: UUID!) {
	deleteAttachment(id: $id) { id }
}`)
)

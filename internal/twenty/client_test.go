package twenty

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"spartan-crm/internal/domain"
)

const testBaseURL = "https://crm.example.test"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient(Config{BaseURL: testBaseURL + "/graphql/", APIKey: "test-key"}, zap.NewNop())
	gock.InterceptClient(c.HTTPClient().GetClient())
	t.Cleanup(func() {
		gock.RestoreClient(c.HTTPClient().GetClient())
		gock.OffAll()
	})
	return c
}

// matchOperation matches requests carrying the named GraphQL operation
func matchOperation(name string) gock.MatchFunc {
	return func(req *http.Request, _ *gock.Request) (bool, error) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return false, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		return bytes.Contains(body, []byte("query "+name+"(")) ||
			bytes.Contains(body, []byte("mutation "+name+"(")), nil
	}
}

// captureVariables records the decoded variables of the matched request
func captureVariables(dst *map[string]any) gock.MatchFunc {
	return func(req *http.Request, _ *gock.Request) (bool, error) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return false, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		var payload gqlRequest
		if err := json.Unmarshal(body, &payload); err != nil {
			return false, nil
		}
		*dst = payload.Variables
		return true, nil
	}
}

func remoteLeadJSON(id, name, stage string, micros float64, rep string) map[string]any {
	return map[string]any{
		"id":        id,
		"name":      name,
		"phones":    map[string]any{"primaryPhoneNumber": "555-0100"},
		"emails":    map[string]any{"primaryEmail": strings.ToLower(name) + "@example.com"},
		"address":   map[string]any{"addressStreet1": "1 Main St", "addressCity": "Tulsa", "addressState": "OK", "addressPostcode": "74103"},
		"source":    "DOOR_KNOCKING",
		"medium":    "ORGANIC",
		"stage":     stage,
		"salesRep":  rep,
		"estValue":  map[string]any{"amountMicros": micros, "currencyCode": "USD"},
		"createdAt": "2026-01-10T15:04:05Z",
		"updatedAt": "2026-01-11T15:04:05Z",
	}
}

func TestListLeads_PaginatesAndConverts(t *testing.T) {
	c := newTestClient(t)

	gock.New(testBaseURL).
		Post("/graphql").
		MatchHeader("Authorization", "Bearer test-key").
		AddMatcher(matchOperation("ListLeads")).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"leads": map[string]any{
			"edges":    []any{map[string]any{"node": remoteLeadJSON("r1", "Ann", "QUALIFIED", 15_000_000, "Dana")}},
			"pageInfo": map[string]any{"hasNextPage": true, "endCursor": "c1"},
		}}})
	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("ListLeads")).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"leads": map[string]any{
			"edges":    []any{map[string]any{"node": remoteLeadJSON("r2", "Bob", "ON_HOLD", 0, "Eli")}},
			"pageInfo": map[string]any{"hasNextPage": false, "endCursor": "c2"},
		}}})

	leads, err := c.ListLeads(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.True(t, gock.IsDone())

	ann := leads[0]
	assert.Equal(t, "r1", ann.ID)
	assert.Equal(t, 15.0, ann.EstimatedValue)
	assert.Equal(t, domain.StatusQualified, ann.Status)
	assert.Equal(t, "QUALIFIED", ann.Stage)
	assert.Equal(t, domain.SourceDoorKnocking, ann.Source)
	assert.Equal(t, "Tulsa", ann.City)
	assert.Equal(t, "74103", ann.ZipCode)

	bob := leads[1]
	assert.Equal(t, domain.StatusNew, bob.Status)
	assert.Equal(t, "ON_HOLD", bob.Stage)
}

func TestListLeads_FiltersBySalesRep(t *testing.T) {
	c := newTestClient(t)

	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("ListLeads")).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"leads": map[string]any{
			"edges": []any{
				map[string]any{"node": remoteLeadJSON("r1", "Ann", "NEW", 0, "Dana")},
				map[string]any{"node": remoteLeadJSON("r2", "Bob", "NEW", 0, "Eli")},
			},
			"pageInfo": map[string]any{"hasNextPage": false},
		}}})

	leads, err := c.ListLeads(context.Background(), &LeadFilter{SalesRep: "dana"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "r1", leads[0].ID)
}

func TestUpdateLead_SendsMicrosAndFlattenedAddress(t *testing.T) {
	c := newTestClient(t)

	var vars map[string]any
	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("UpdateLead")).
		AddMatcher(captureVariables(&vars)).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{
			"updateLead": remoteLeadJSON("r1", "Ann", "PROPOSAL", 15_000_000, "Dana"),
		}})

	lead := domain.Lead{
		ID: "r1", Name: "Ann", City: "Tulsa", Address: "1 Main St", State: "OK", ZipCode: "74103",
		Status: domain.StatusProposal, EstimatedValue: 15,
	}
	updated, err := c.UpdateLead(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, 15.0, updated.EstimatedValue)

	require.NotNil(t, vars)
	assert.Equal(t, "r1", vars["id"])
	data := vars["data"].(map[string]any)
	assert.Equal(t, "PROPOSAL", data["stage"])
	assert.Equal(t, 15_000_000.0, data["estValue"].(map[string]any)["amountMicros"])
	address := data["address"].(map[string]any)
	assert.Equal(t, "Tulsa", address["addressCity"])
	assert.Equal(t, "1 Main St", address["addressStreet1"])
	_, hasSource := data["source"]
	assert.False(t, hasSource)
}

func TestPatchLead_SendsOnlyChangedFields(t *testing.T) {
	c := newTestClient(t)

	var vars map[string]any
	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(captureVariables(&vars)).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{
			"updateLead": remoteLeadJSON("r1", "Ann", "NEW", 0, ""),
		}})

	city := "Norman"
	current := domain.Lead{Address: "1 Main St", City: "Tulsa", State: "OK", ZipCode: "74103"}
	_, err := c.PatchLead(context.Background(), "r1", domain.LeadPatch{City: &city}, current)
	require.NoError(t, err)

	data := vars["data"].(map[string]any)
	assert.Len(t, data, 1)
	address := data["address"].(map[string]any)
	assert.Equal(t, "Norman", address["addressCity"])
	assert.Equal(t, "1 Main St", address["addressStreet1"])
}

func TestUpdateLead_NotFound(t *testing.T) {
	t.Run("graphql error code", func(t *testing.T) {
		c := newTestClient(t)
		gock.New(testBaseURL).
			Post("/graphql").
			Reply(200).
			JSON(map[string]any{"errors": []any{map[string]any{
				"message":    "Record does not exist",
				"extensions": map[string]any{"code": "NOT_FOUND"},
			}}})

		_, err := c.UpdateLead(context.Background(), domain.Lead{ID: "missing"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, "Record does not exist", Detail(err))
	})

	t.Run("http 404", func(t *testing.T) {
		c := newTestClient(t)
		gock.New(testBaseURL).Post("/graphql").Reply(404).BodyString("no such lead")

		_, err := c.UpdateLead(context.Background(), domain.Lead{ID: "missing"})
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestExecute_ServerErrorIsNotNotFound(t *testing.T) {
	c := newTestClient(t)
	gock.New(testBaseURL).Post("/graphql").Reply(500).BodyString("upstream exploded")

	err := c.DeleteLead(context.Background(), "r1")
	require.Error(t, err)

	var remoteErr *Error
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusInternalServerError, remoteErr.StatusCode)
	assert.Equal(t, "DeleteLead", remoteErr.Operation)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestCreateNoteForLead_LinkFailureStillReturnsNote(t *testing.T) {
	c := newTestClient(t)

	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("CreateNote")).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"createNote": map[string]any{
			"id": "n1", "title": "Inspection", "body": "Hail damage on north slope",
		}}})
	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("CreateNoteTarget")).
		Reply(500).
		BodyString("link failed")

	note, err := c.CreateNoteForLead(context.Background(), "r1", "Inspection", "Hail damage on north slope")
	require.NoError(t, err)
	assert.Equal(t, "n1", note.ID)
	assert.True(t, gock.IsDone())
}

func TestGetTasksForLead(t *testing.T) {
	c := newTestClient(t)

	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("TaskTargets")).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"taskTargets": map[string]any{
			"edges": []any{
				map[string]any{"node": map[string]any{"id": "tt1", "task": map[string]any{
					"id": "t1", "title": "Call back", "status": "TODO", "dueAt": "2026-02-01T10:00:00Z",
				}}},
				map[string]any{"node": map[string]any{"id": "tt2", "task": nil}},
			},
		}}})

	tasks, err := c.GetTasksForLead(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskTodo, tasks[0].Status)
	require.NotNil(t, tasks[0].DueAt)
}

func TestCreateTask_RejectsUnknownStatus(t *testing.T) {
	c := newTestClient(t)
	_, err := c.CreateTask(context.Background(), TaskInput{LeadID: "r1", Title: "x", Status: "LATER"})
	require.Error(t, err)
}

func TestUploadAttachment(t *testing.T) {
	c := newTestClient(t)

	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("CreateAttachment")).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"createAttachment": map[string]any{"id": "a1", "name": "roof.jpg"}}})
	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("UploadFile")).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"uploadFile": "attachment/roof.jpg"}})
	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("UpdateAttachment")).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"updateAttachment": map[string]any{
			"id": "a1", "name": "roof.jpg", "fullPath": "attachment/roof.jpg", "type": "Image",
		}}})

	att, err := c.UploadAttachment(context.Background(), "r1", "roof.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "attachment/roof.jpg", att.FullPath)
	assert.True(t, gock.IsDone())
}

func TestUploadAttachment_UploadFailureDeletesRecord(t *testing.T) {
	c := newTestClient(t)

	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("CreateAttachment")).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"createAttachment": map[string]any{"id": "a1"}}})
	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("UploadFile")).
		Reply(500).
		BodyString("storage unavailable")
	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("DeleteAttachment")).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"deleteAttachment": map[string]any{"id": "a1"}}})

	_, err := c.UploadAttachment(context.Background(), "r1", "roof.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.Error(t, err)

	var uploadErr *UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, 2, uploadErr.Step)
	assert.Equal(t, "a1", uploadErr.AttachmentID)
	assert.Contains(t, err.Error(), "step 2")
	assert.True(t, gock.IsDone())
}

func TestStatusStageMapping(t *testing.T) {
	for _, s := range domain.Statuses {
		assert.Equal(t, s, StatusForStage(StageForStatus(s)))
	}
	assert.Equal(t, "WON", StageForStatus(domain.StatusWon))
	assert.Equal(t, domain.StatusNew, StatusForStage("MEETING_SCHEDULED"))
	assert.Equal(t, domain.StatusNew, StatusForStage(""))
}

func TestUploadAttachment_CreateFailureSkipsDelete(t *testing.T) {
	c := newTestClient(t)

	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("CreateAttachment")).
		Reply(500).
		BodyString("boom")
	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("DeleteAttachment")).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"deleteAttachment": map[string]any{"id": "a1"}}})

	_, err := c.UploadAttachment(context.Background(), "r1", "roof.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.Error(t, err)

	var uploadErr *UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, 1, uploadErr.Step)
	assert.Empty(t, uploadErr.AttachmentID)
	// nothing was created, so the delete mock is never consumed
	assert.False(t, gock.IsDone())
	assert.Len(t, gock.Pending(), 1)
}

func TestUploadAttachment_AttachPathFailureDeletesRecord(t *testing.T) {
	c := newTestClient(t)

	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("CreateAttachment")).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"createAttachment": map[string]any{"id": "a1"}}})
	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("UploadFile")).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"uploadFile": "attachment/roof.jpg"}})
	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("UpdateAttachment")).
		Reply(500).
		BodyString("boom")
	gock.New(testBaseURL).
		Post("/graphql").
		AddMatcher(matchOperation("DeleteAttachment")).
		Reply(200).
		JSON(map[string]any{"data": map[string]any{"deleteAttachment": map[string]any{"id": "a1"}}})

	_, err := c.UploadAttachment(context.Background(), "r1", "roof.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.Error(t, err)

	var uploadErr *UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, 3, uploadErr.Step)
	assert.Equal(t, "a1", uploadErr.AttachmentID)
	assert.True(t, gock.IsDone())
}

func TestLeadInput_KeepsUnmappedStage(t *testing.T) {
	var remote remoteLead
	raw, err := json.Marshal(remoteLeadJSON("r1", "Ann", "INSPECTION_SCHEDULED", 0, ""))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &remote))

	lead := remote.toDomain()
	assert.Equal(t, domain.StatusNew, lead.Status)
	assert.Equal(t, "INSPECTION_SCHEDULED", leadInput(lead)["stage"])

	lead.Status = domain.StatusWon
	assert.Equal(t, "WON", leadInput(lead)["stage"])

	lead.Status, lead.Stage = domain.StatusContacted, ""
	assert.Equal(t, "CONTACTED", leadInput(lead)["stage"])
}

func TestPatchInput_StageOnlyOnStatusChange(t *testing.T) {
	current := domain.Lead{Status: domain.StatusNew, Stage: "INSPECTION_SCHEDULED"}

	same := domain.StatusNew
	data := patchInput(domain.LeadPatch{Status: &same}, current)
	_, hasStage := data["stage"]
	assert.False(t, hasStage)

	won := domain.StatusWon
	data = patchInput(domain.LeadPatch{Status: &won}, current)
	assert.Equal(t, "WON", data["stage"])

	// relational leads carry no remote stage
	data = patchInput(domain.LeadPatch{Status: &same}, domain.Lead{Status: domain.StatusContacted})
	assert.Equal(t, "NEW", data["stage"])
}

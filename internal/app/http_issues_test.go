package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"issuetracker/api/internal/store"
)

func newTestServer() *HTTPServer {
	return NewHTTPServer(NewService(store.NewMemoryStore()), "*")
}

func doJSON(t *testing.T, server *HTTPServer, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = strings.NewReader(string(encoded))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeIssue(t *testing.T, rr *httptest.ResponseRecorder) store.Issue {
	t.Helper()
	var issue store.Issue
	if err := json.Unmarshal(rr.Body.Bytes(), &issue); err != nil {
		t.Fatalf("decode issue response: %v", err)
	}
	return issue
}

func decodeIssues(t *testing.T, rr *httptest.ResponseRecorder) []store.Issue {
	t.Helper()
	var issues []store.Issue
	if err := json.Unmarshal(rr.Body.Bytes(), &issues); err != nil {
		t.Fatalf("decode issue list: %v", err)
	}
	return issues
}

func TestCreateIssue_EveryField(t *testing.T) {
	server := newTestServer()

	rr := doJSON(t, server, http.MethodPost, "/api/issues/test", map[string]any{
		"issue_title": "Title",
		"issue_text":  "text",
		"created_by":  "Functional Test - Every field filled in",
		"assigned_to": "Chai and Mocha",
		"status_text": "In QA",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	issue := decodeIssue(t, rr)
	if issue.ID == "" {
		t.Error("expected a generated _id")
	}
	if issue.Title != "Title" || issue.Text != "text" {
		t.Errorf("unexpected title/text: %q/%q", issue.Title, issue.Text)
	}
	if issue.AssignedTo != "Chai and Mocha" || issue.StatusText != "In QA" {
		t.Errorf("unexpected assigned_to/status_text: %q/%q", issue.AssignedTo, issue.StatusText)
	}
	if !issue.Open {
		t.Error("expected open=true on creation")
	}
	if issue.CreatedOn != issue.UpdatedOn {
		t.Errorf("expected created_on == updated_on, got %q vs %q", issue.CreatedOn, issue.UpdatedOn)
	}
	if _, err := time.Parse(isoLayout, issue.CreatedOn); err != nil {
		t.Errorf("created_on is not ISO-8601: %v", err)
	}
}

func TestCreateIssue_RequiredFieldsOnly(t *testing.T) {
	server := newTestServer()

	rr := doJSON(t, server, http.MethodPost, "/api/issues/test", map[string]any{
		"issue_title": "Title",
		"issue_text":  "text",
		"created_by":  "Tester",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	issue := decodeIssue(t, rr)
	if issue.AssignedTo != "" {
		t.Errorf("expected assigned_to defaulted to empty, got %q", issue.AssignedTo)
	}
	if issue.StatusText != "" {
		t.Errorf("expected status_text defaulted to empty, got %q", issue.StatusText)
	}
	if !issue.Open {
		t.Error("expected open=true on creation")
	}
}

func TestCreateIssue_MissingRequiredFields(t *testing.T) {
	server := newTestServer()

	cases := []map[string]any{
		{"issue_text": "text", "created_by": "Tester"},
		{"issue_title": "Title", "created_by": "Tester"},
		{"issue_title": "Title", "issue_text": "text"},
		{"assigned_to": "Chai and Mocha", "status_text": "In QA"},
		{},
	}
	for i, payload := range cases {
		rr := doJSON(t, server, http.MethodPost, "/api/issues/test", payload)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("case %d: expected status 422, got %d", i, rr.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("case %d: decode response: %v", i, err)
		}
		if body["error"] == "" {
			t.Errorf("case %d: expected an error key", i)
		}
	}
}

func TestCreateIssue_EmptyBody(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/issues/test", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422 for empty body, got %d", rr.Code)
	}
}

func TestCreateIssue_NeverDeduplicated(t *testing.T) {
	server := newTestServer()
	payload := map[string]any{
		"issue_title": "Title",
		"issue_text":  "text",
		"created_by":  "Tester",
	}

	first := decodeIssue(t, doJSON(t, server, http.MethodPost, "/api/issues/test", payload))
	second := decodeIssue(t, doJSON(t, server, http.MethodPost, "/api/issues/test", payload))
	if first.ID == second.ID {
		t.Errorf("expected distinct ids for repeated creates, both were %s", first.ID)
	}
}

func TestListIssues_FilterAndProjectScoping(t *testing.T) {
	server := newTestServer()

	a := decodeIssue(t, doJSON(t, server, http.MethodPost, "/api/issues/test", map[string]any{
		"issue_title": "First", "issue_text": "text", "created_by": "Alice",
	}))
	decodeIssue(t, doJSON(t, server, http.MethodPost, "/api/issues/test", map[string]any{
		"issue_title": "Second", "issue_text": "text", "created_by": "Bob",
	}))
	decodeIssue(t, doJSON(t, server, http.MethodPost, "/api/issues/other", map[string]any{
		"issue_title": "Elsewhere", "issue_text": "text", "created_by": "Alice",
	}))

	rr := doJSON(t, server, http.MethodGet, "/api/issues/test", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if all := decodeIssues(t, rr); len(all) != 2 {
		t.Fatalf("expected 2 issues in project test, got %d", len(all))
	}

	rr = doJSON(t, server, http.MethodGet, "/api/issues/test?created_by=Alice", nil)
	byCreator := decodeIssues(t, rr)
	if len(byCreator) != 1 || byCreator[0].ID != a.ID {
		t.Errorf("expected only Alice's issue, got %+v", byCreator)
	}

	rr = doJSON(t, server, http.MethodGet, "/api/issues/test?created_by=Alice&issue_title=First&open=true", nil)
	if multi := decodeIssues(t, rr); len(multi) != 1 {
		t.Errorf("expected 1 issue for multi-field filter, got %d", len(multi))
	}

	rr = doJSON(t, server, http.MethodGet, "/api/issues/test?_id="+a.ID, nil)
	if byID := decodeIssues(t, rr); len(byID) != 1 || byID[0].Title != "First" {
		t.Errorf("expected lookup by _id to return First, got %+v", byID)
	}

	rr = doJSON(t, server, http.MethodGet, "/api/issues/empty", nil)
	if empty := decodeIssues(t, rr); len(empty) != 0 {
		t.Errorf("expected empty list for unknown project, got %d", len(empty))
	}
}

func TestUpdateIssue_PartialUpdate(t *testing.T) {
	server := newTestServer()

	created := decodeIssue(t, doJSON(t, server, http.MethodPost, "/api/issues/test", map[string]any{
		"issue_title": "Title", "issue_text": "text", "created_by": "Tester",
	}))

	// Cross the millisecond boundary so updated_on visibly moves.
	time.Sleep(5 * time.Millisecond)

	rr := doJSON(t, server, http.MethodPut, "/api/issues/test", map[string]any{
		"_id":         created.ID,
		"status_text": "In QA",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	want := fmt.Sprintf("Successfully updated %s", created.ID)
	if got := rr.Body.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	after := decodeIssues(t, doJSON(t, server, http.MethodGet, "/api/issues/test?_id="+created.ID, nil))
	if len(after) != 1 {
		t.Fatalf("expected 1 issue after update, got %d", len(after))
	}
	got := after[0]
	if got.StatusText != "In QA" {
		t.Errorf("expected status_text updated, got %q", got.StatusText)
	}
	if got.Title != "Title" || got.Text != "text" || got.CreatedBy != "Tester" {
		t.Errorf("unspecified fields changed: %+v", got)
	}
	if got.CreatedOn != created.CreatedOn {
		t.Errorf("created_on changed on update: %q vs %q", got.CreatedOn, created.CreatedOn)
	}
	if !(got.UpdatedOn > got.CreatedOn) {
		t.Errorf("expected updated_on to advance past created_on: %q vs %q", got.UpdatedOn, got.CreatedOn)
	}
}

func TestUpdateIssue_MultipleFields(t *testing.T) {
	server := newTestServer()

	created := decodeIssue(t, doJSON(t, server, http.MethodPost, "/api/issues/test", map[string]any{
		"issue_title": "Title", "issue_text": "text", "created_by": "Tester",
	}))

	rr := doJSON(t, server, http.MethodPut, "/api/issues/test", map[string]any{
		"_id":         created.ID,
		"issue_title": "New title",
		"assigned_to": "Crew",
		"open":        false,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	after := decodeIssues(t, doJSON(t, server, http.MethodGet, "/api/issues/test?_id="+created.ID, nil))[0]
	if after.Title != "New title" || after.AssignedTo != "Crew" {
		t.Errorf("expected fields updated, got %+v", after)
	}
	if after.Open {
		t.Error("expected issue closed")
	}
	if after.Text != "text" {
		t.Errorf("issue_text should be untouched, got %q", after.Text)
	}
}

func TestUpdateIssue_OpenIsOneWay(t *testing.T) {
	server := newTestServer()

	created := decodeIssue(t, doJSON(t, server, http.MethodPost, "/api/issues/test", map[string]any{
		"issue_title": "Title", "issue_text": "text", "created_by": "Tester",
	}))

	doJSON(t, server, http.MethodPut, "/api/issues/test", map[string]any{"_id": created.ID, "open": false})

	// Sending open:true contributes nothing to the patch; with no other
	// updatable field the request is a no-op and the issue stays closed.
	rr := doJSON(t, server, http.MethodPut, "/api/issues/test", map[string]any{"_id": created.ID, "open": true})
	if got := rr.Body.String(); got != "Update fields are empty!" {
		t.Errorf("expected no-op response, got %q", got)
	}

	after := decodeIssues(t, doJSON(t, server, http.MethodGet, "/api/issues/test?_id="+created.ID, nil))[0]
	if after.Open {
		t.Error("reopening must not be possible through update")
	}
}

func TestUpdateIssue_EmptyBody(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodPut, "/api/issues/test", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != "All the fields are empty!" {
		t.Errorf("expected empty-body message, got %q", got)
	}
}

func TestUpdateIssue_MissingID(t *testing.T) {
	server := newTestServer()

	rr := doJSON(t, server, http.MethodPut, "/api/issues/test", map[string]any{
		"status_text": "In QA",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != "_id must be provided!" {
		t.Errorf("expected missing-id message, got %q", got)
	}
}

func TestUpdateIssue_NoUpdatableFields(t *testing.T) {
	server := newTestServer()

	created := decodeIssue(t, doJSON(t, server, http.MethodPost, "/api/issues/test", map[string]any{
		"issue_title": "Title", "issue_text": "text", "created_by": "Tester",
	}))

	rr := doJSON(t, server, http.MethodPut, "/api/issues/test", map[string]any{
		"_id":         created.ID,
		"issue_title": "",
	})
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200 for no-op update, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != "Update fields are empty!" {
		t.Errorf("expected no-op message, got %q", got)
	}
}

func TestUpdateIssue_UnknownID(t *testing.T) {
	server := newTestServer()

	rr := doJSON(t, server, http.MethodPut, "/api/issues/test", map[string]any{
		"_id":         "5f1f3a2b4c5d6e7f80918273",
		"status_text": "In QA",
	})
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	want := "Could not update 5f1f3a2b4c5d6e7f80918273"
	if got := rr.Body.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDeleteIssue_MissingID(t *testing.T) {
	server := newTestServer()

	rr := doJSON(t, server, http.MethodDelete, "/api/issues/test", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] != "id error!" {
		t.Errorf(`expected error "id error!", got %q`, body["error"])
	}
}

func TestDeleteIssue_ValidID(t *testing.T) {
	server := newTestServer()

	created := decodeIssue(t, doJSON(t, server, http.MethodPost, "/api/issues/test", map[string]any{
		"issue_title": "Title", "issue_text": "text", "created_by": "Tester",
	}))

	rr := doJSON(t, server, http.MethodDelete, "/api/issues/test?_id="+created.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := fmt.Sprintf("deleted %s.", created.ID)
	if body["success"] != want {
		t.Errorf("expected success %q, got %q", want, body["success"])
	}

	after := decodeIssues(t, doJSON(t, server, http.MethodGet, "/api/issues/test?_id="+created.ID, nil))
	if len(after) != 0 {
		t.Errorf("expected empty list after delete, got %d", len(after))
	}
}

func TestDeleteIssue_UnknownID(t *testing.T) {
	server := newTestServer()

	rr := doJSON(t, server, http.MethodDelete, "/api/issues/test?_id=5f1f3a2b4c5d6e7f80918273", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected an error key for unknown id")
	}
}

func TestIssuesRoute_UnknownPathAndMethod(t *testing.T) {
	server := newTestServer()

	rr := doJSON(t, server, http.MethodGet, "/api/unknown", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}

	rr = doJSON(t, server, http.MethodPatch, "/api/issues/test", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rr.Code)
	}
}

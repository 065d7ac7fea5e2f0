package app

import (
	"errors"
	"time"

	"issuetracker/api/internal/store"
)

// Timestamps render with millisecond precision, the same shape the JSON API
// has always emitted.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

func isoNow() string {
	return time.Now().UTC().Format(isoLayout)
}

var errRequiredFields = errors.New("One or more important fields are empty!")

// CreateIssueParams is the POST payload.
type CreateIssueParams struct {
	Title      string `json:"issue_title"`
	Text       string `json:"issue_text"`
	CreatedBy  string `json:"created_by"`
	AssignedTo string `json:"assigned_to"`
	StatusText string `json:"status_text"`
}

// Validate enforces the create rules: title, text, and creator must all be
// present and non-empty. An absent or empty body decodes to the zero value
// and fails here too.
func (p CreateIssueParams) Validate() error {
	if p.Title == "" || p.Text == "" || p.CreatedBy == "" {
		return errRequiredFields
	}
	return nil
}

// NewIssue builds the canonical record for a create. Both timestamps come
// from the same instant, so created_on can never exceed updated_on.
func NewIssue(p CreateIssueParams) store.Issue {
	now := isoNow()
	return store.Issue{
		Title:      p.Title,
		Text:       p.Text,
		CreatedBy:  p.CreatedBy,
		AssignedTo: p.AssignedTo,
		StatusText: p.StatusText,
		CreatedOn:  now,
		UpdatedOn:  now,
		Open:       true,
	}
}

// UpdateIssueParams is the PUT payload. Pointer fields distinguish "absent"
// from "present but empty".
type UpdateIssueParams struct {
	ID         string  `json:"_id"`
	Title      *string `json:"issue_title"`
	Text       *string `json:"issue_text"`
	CreatedBy  *string `json:"created_by"`
	AssignedTo *string `json:"assigned_to"`
	StatusText *string `json:"status_text"`
	Open       *bool   `json:"open"`
}

func (p UpdateIssueParams) isEmpty() bool {
	return p.ID == "" &&
		p.Title == nil &&
		p.Text == nil &&
		p.CreatedBy == nil &&
		p.AssignedTo == nil &&
		p.StatusText == nil &&
		p.Open == nil
}

// Patch builds the partial-update document: only fields explicitly supplied
// with a non-empty value, plus open when the client sent the boolean false.
// The update path never reopens an issue; close is one-way.
func (p UpdateIssueParams) Patch() map[string]any {
	patch := make(map[string]any)
	set := func(key string, value *string) {
		if value != nil && *value != "" {
			patch[key] = *value
		}
	}
	set("issue_title", p.Title)
	set("issue_text", p.Text)
	set("created_by", p.CreatedBy)
	set("assigned_to", p.AssignedTo)
	set("status_text", p.StatusText)
	if p.Open != nil && !*p.Open {
		patch["open"] = false
	}
	return patch
}

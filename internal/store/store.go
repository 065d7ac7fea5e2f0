// Package store provides the document gateway for issue records. Every
// backend partitions issues per project and is the only code allowed to
// create, mutate, or destroy persisted records.
package store

import (
	"context"
	"errors"
	"strconv"
)

// Issue is the persisted record. Timestamps are ISO-8601 strings, matching
// the wire format exactly.
type Issue struct {
	ID         string `json:"_id"`
	Title      string `json:"issue_title"`
	Text       string `json:"issue_text"`
	CreatedBy  string `json:"created_by"`
	AssignedTo string `json:"assigned_to"`
	StatusText string `json:"status_text"`
	CreatedOn  string `json:"created_on"`
	UpdatedOn  string `json:"updated_on"`
	Open       bool   `json:"open"`
}

// UpdateResult reports how many records an update matched and modified.
// Zero matched means the id did not exist; that is not an error.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// ErrConnection indicates the backing store could not be reached.
var ErrConnection = errors.New("store unreachable")

// Store is the gateway to issue persistence. All implementations hold one
// pooled connection per process, created at startup and closed at shutdown,
// and are safe for concurrent callers.
type Store interface {
	// InsertIssue stores the record in the project partition, assigns its
	// identity, and returns the assigned id.
	InsertIssue(ctx context.Context, project string, issue *Issue) (string, error)
	// UpdateIssue applies patch as a partial merge onto the record with the
	// given id. An unknown or malformed id yields zero matched, nil error.
	UpdateIssue(ctx context.Context, project, id string, patch map[string]any) (UpdateResult, error)
	// FindIssues returns the records matching every filter field by exact
	// equality. An empty filter returns the whole partition in insertion
	// order.
	FindIssues(ctx context.Context, project string, filter map[string]string) ([]Issue, error)
	// DeleteIssue removes the record with the given id and returns it, or
	// nil when no such record existed.
	DeleteIssue(ctx context.Context, project, id string) (*Issue, error)

	Ping(ctx context.Context) error
	Close() error
}

// matchesFilter applies query-string equality semantics to an issue. The
// open flag compares as a boolean; a filter key that is not an issue field
// matches nothing, which is how a document store treats absent fields.
func matchesFilter(issue Issue, filter map[string]string) bool {
	for key, want := range filter {
		switch key {
		case "_id":
			if issue.ID != want {
				return false
			}
		case "issue_title":
			if issue.Title != want {
				return false
			}
		case "issue_text":
			if issue.Text != want {
				return false
			}
		case "created_by":
			if issue.CreatedBy != want {
				return false
			}
		case "assigned_to":
			if issue.AssignedTo != want {
				return false
			}
		case "status_text":
			if issue.StatusText != want {
				return false
			}
		case "created_on":
			if issue.CreatedOn != want {
				return false
			}
		case "updated_on":
			if issue.UpdatedOn != want {
				return false
			}
		case "open":
			open, err := strconv.ParseBool(want)
			if err != nil || issue.Open != open {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// applyPatch merges a partial-update document into an issue. Patch values
// come from the normalizer, so fields carry their canonical types.
func applyPatch(issue *Issue, patch map[string]any) {
	for key, value := range patch {
		switch key {
		case "issue_title":
			issue.Title, _ = value.(string)
		case "issue_text":
			issue.Text, _ = value.(string)
		case "created_by":
			issue.CreatedBy, _ = value.(string)
		case "assigned_to":
			issue.AssignedTo, _ = value.(string)
		case "status_text":
			issue.StatusText, _ = value.(string)
		case "updated_on":
			issue.UpdatedOn, _ = value.(string)
		case "open":
			issue.Open, _ = value.(bool)
		}
	}
}

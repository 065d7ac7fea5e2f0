// Package app implements the issues API: request validation, record
// normalization, and the handlers that drive the store gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"issuetracker/api/internal/store"
)

// Outcome is the result of one write operation, shaped for transport.
// Exactly one of JSON or Text is set. The status asymmetry is part of the
// API contract: only request validation produces 422, while store-layer
// failures answer 200 with an error payload, so clients must inspect the
// body to detect failure on write paths.
type Outcome struct {
	Status int
	JSON   any
	Text   string
}

func jsonOutcome(status int, body any) Outcome {
	return Outcome{Status: status, JSON: body}
}

func textOutcome(status int, text string) Outcome {
	return Outcome{Status: status, Text: text}
}

// softError is a failure delivered inside a 200 response.
func softError(message string) Outcome {
	return jsonOutcome(http.StatusOK, map[string]string{"error": message})
}

// Service orchestrates validation, normalization, and the store gateway.
type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ListIssues returns every issue in the project partition matching the
// filter. The result is never nil so the response encodes as a JSON array.
func (s *Service) ListIssues(ctx context.Context, project string, filter map[string]string) ([]store.Issue, error) {
	issues, err := s.store.FindIssues(ctx, project, filter)
	if err != nil {
		return nil, err
	}
	if issues == nil {
		issues = []store.Issue{}
	}
	return issues, nil
}

func (s *Service) CreateIssue(ctx context.Context, project string, params CreateIssueParams) Outcome {
	if err := params.Validate(); err != nil {
		return jsonOutcome(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}

	issue := NewIssue(params)
	if _, err := s.store.InsertIssue(ctx, project, &issue); err != nil {
		log.Printf("insert issue in %q: %v", project, err)
		return softError(err.Error())
	}
	return jsonOutcome(http.StatusOK, issue)
}

func (s *Service) UpdateIssue(ctx context.Context, project string, params UpdateIssueParams) Outcome {
	if params.isEmpty() {
		return textOutcome(http.StatusUnprocessableEntity, "All the fields are empty!")
	}
	if params.ID == "" {
		return textOutcome(http.StatusUnprocessableEntity, "_id must be provided!")
	}

	patch := params.Patch()
	if len(patch) == 0 {
		// Nothing updatable was supplied; the store is not touched.
		return textOutcome(http.StatusOK, "Update fields are empty!")
	}
	patch["updated_on"] = isoNow()

	result, err := s.store.UpdateIssue(ctx, project, params.ID, patch)
	if err != nil {
		log.Printf("update issue %s in %q: %v", params.ID, project, err)
		if errors.Is(err, store.ErrConnection) {
			return softError(err.Error())
		}
		return textOutcome(http.StatusOK, fmt.Sprintf("Could not update %s", params.ID))
	}
	if result.Matched == 0 {
		return textOutcome(http.StatusOK, fmt.Sprintf("Could not update %s", params.ID))
	}
	return textOutcome(http.StatusOK, fmt.Sprintf("Successfully updated %s", params.ID))
}

func (s *Service) DeleteIssue(ctx context.Context, project, id string) Outcome {
	if id == "" {
		return softError("id error!")
	}

	deleted, err := s.store.DeleteIssue(ctx, project, id)
	if err != nil {
		log.Printf("delete issue %s in %q: %v", id, project, err)
		return softError(fmt.Sprintf("could not delete %s", id))
	}
	if deleted == nil {
		return softError(fmt.Sprintf("could not delete %s", id))
	}
	return jsonOutcome(http.StatusOK, map[string]string{"success": fmt.Sprintf("deleted %s.", id)})
}

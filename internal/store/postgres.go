package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostgresStore keeps each issue as a JSONB document in a single table, with
// the project name as the partition column. Filtering uses containment so
// the equality semantics match the document backends.
type PostgresStore struct {
	db *sql.DB
}

func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS issues (
			id      TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			seq     BIGSERIAL,
			doc     JSONB NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure issues table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_issues_project ON issues (project, seq)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure issues index: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) InsertIssue(ctx context.Context, project string, issue *Issue) (string, error) {
	issue.ID = primitive.NewObjectID().Hex()
	doc, err := json.Marshal(issue)
	if err != nil {
		return "", fmt.Errorf("marshal issue: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO issues (id, project, doc) VALUES ($1, $2, $3)
	`, issue.ID, project, doc); err != nil {
		return "", fmt.Errorf("insert issue: %w", err)
	}
	return issue.ID, nil
}

func (s *PostgresStore) UpdateIssue(ctx context.Context, project, id string, patch map[string]any) (UpdateResult, error) {
	merge, err := json.Marshal(patch)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("marshal patch: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE issues SET doc = doc || $3::jsonb WHERE id = $1 AND project = $2
	`, id, project, merge)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update issue: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update issue rows: %w", err)
	}
	return UpdateResult{Matched: affected, Modified: affected}, nil
}

func (s *PostgresStore) FindIssues(ctx context.Context, project string, filter map[string]string) ([]Issue, error) {
	contains := make(map[string]any, len(filter))
	for key, value := range filter {
		if key == "open" {
			open, err := strconv.ParseBool(value)
			if err != nil {
				return []Issue{}, nil
			}
			contains[key] = open
			continue
		}
		contains[key] = value
	}
	probe, err := json.Marshal(contains)
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM issues WHERE project = $1 AND doc @> $2::jsonb ORDER BY seq
	`, project, probe)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	defer rows.Close()

	items := make([]Issue, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		var issue Issue
		if err := json.Unmarshal(doc, &issue); err != nil {
			return nil, fmt.Errorf("unmarshal issue: %w", err)
		}
		items = append(items, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteIssue(ctx context.Context, project, id string) (*Issue, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM issues WHERE id = $1 AND project = $2 RETURNING doc
	`, id, project).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete issue: %w", err)
	}
	var issue Issue
	if err := json.Unmarshal(doc, &issue); err != nil {
		return nil, fmt.Errorf("unmarshal deleted issue: %w", err)
	}
	return &issue, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

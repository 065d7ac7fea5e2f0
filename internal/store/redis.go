package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RedisStore keeps each issue as a hash keyed issues:{project}:{id} and a
// per-project list of ids so partitions preserve insertion order.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return &RedisStore{client: client, prefix: "issues:"}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "issues:"}
}

func (s *RedisStore) partitionKey(project string) string {
	return s.prefix + project
}

func (s *RedisStore) issueKey(project, id string) string {
	return s.prefix + project + ":" + id
}

func issueToHash(issue Issue) map[string]string {
	return map[string]string{
		"_id":         issue.ID,
		"issue_title": issue.Title,
		"issue_text":  issue.Text,
		"created_by":  issue.CreatedBy,
		"assigned_to": issue.AssignedTo,
		"status_text": issue.StatusText,
		"created_on":  issue.CreatedOn,
		"updated_on":  issue.UpdatedOn,
		"open":        strconv.FormatBool(issue.Open),
	}
}

func hashToIssue(fields map[string]string) Issue {
	open, _ := strconv.ParseBool(fields["open"])
	return Issue{
		ID:         fields["_id"],
		Title:      fields["issue_title"],
		Text:       fields["issue_text"],
		CreatedBy:  fields["created_by"],
		AssignedTo: fields["assigned_to"],
		StatusText: fields["status_text"],
		CreatedOn:  fields["created_on"],
		UpdatedOn:  fields["updated_on"],
		Open:       open,
	}
}

func (s *RedisStore) InsertIssue(ctx context.Context, project string, issue *Issue) (string, error) {
	issue.ID = primitive.NewObjectID().Hex()
	key := s.issueKey(project, issue.ID)
	if err := s.client.HSet(ctx, key, issueToHash(*issue)).Err(); err != nil {
		return "", fmt.Errorf("insert issue: %w", err)
	}
	if err := s.client.RPush(ctx, s.partitionKey(project), issue.ID).Err(); err != nil {
		return "", fmt.Errorf("insert issue id: %w", err)
	}
	return issue.ID, nil
}

func (s *RedisStore) UpdateIssue(ctx context.Context, project, id string, patch map[string]any) (UpdateResult, error) {
	key := s.issueKey(project, id)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return UpdateResult{}, fmt.Errorf("lookup issue: %w", err)
	}
	if exists == 0 {
		return UpdateResult{}, nil
	}

	fields := make(map[string]string, len(patch))
	for k, v := range patch {
		switch value := v.(type) {
		case string:
			fields[k] = value
		case bool:
			fields[k] = strconv.FormatBool(value)
		default:
			fields[k] = fmt.Sprint(value)
		}
	}
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return UpdateResult{}, fmt.Errorf("update issue: %w", err)
	}
	return UpdateResult{Matched: 1, Modified: 1}, nil
}

func (s *RedisStore) FindIssues(ctx context.Context, project string, filter map[string]string) ([]Issue, error) {
	ids, err := s.client.LRange(ctx, s.partitionKey(project), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list issue ids: %w", err)
	}

	items := make([]Issue, 0)
	for _, id := range ids {
		fields, err := s.client.HGetAll(ctx, s.issueKey(project, id)).Result()
		if err != nil {
			return nil, fmt.Errorf("read issue %s: %w", id, err)
		}
		if len(fields) == 0 {
			continue
		}
		issue := hashToIssue(fields)
		if matchesFilter(issue, filter) {
			items = append(items, issue)
		}
	}
	return items, nil
}

func (s *RedisStore) DeleteIssue(ctx context.Context, project, id string) (*Issue, error) {
	key := s.issueKey(project, id)
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read issue: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("delete issue: %w", err)
	}
	if err := s.client.LRem(ctx, s.partitionKey(project), 1, id).Err(); err != nil {
		return nil, fmt.Errorf("delete issue id: %w", err)
	}
	issue := hashToIssue(fields)
	return &issue, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore is the canonical backend. It holds one pooled client for the
// whole process; each project maps to a collection inside the configured
// database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// mongoIssue is the collection document. Identity lives as a native
// ObjectID and is rendered to hex at the gateway boundary.
type mongoIssue struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Title      string             `bson:"issue_title"`
	Text       string             `bson:"issue_text"`
	CreatedBy  string             `bson:"created_by"`
	AssignedTo string             `bson:"assigned_to"`
	StatusText string             `bson:"status_text"`
	CreatedOn  string             `bson:"created_on"`
	UpdatedOn  string             `bson:"updated_on"`
	Open       bool               `bson:"open"`
}

func (d mongoIssue) toIssue() Issue {
	return Issue{
		ID:         d.ID.Hex(),
		Title:      d.Title,
		Text:       d.Text,
		CreatedBy:  d.CreatedBy,
		AssignedTo: d.AssignedTo,
		StatusText: d.StatusText,
		CreatedOn:  d.CreatedOn,
		UpdatedOn:  d.UpdatedOn,
		Open:       d.Open,
	}
}

func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return &MongoStore{client: client, db: client.Database(dbName)}, nil
}

func (s *MongoStore) collection(project string) *mongo.Collection {
	return s.db.Collection(project)
}

func (s *MongoStore) InsertIssue(ctx context.Context, project string, issue *Issue) (string, error) {
	doc := mongoIssue{
		Title:      issue.Title,
		Text:       issue.Text,
		CreatedBy:  issue.CreatedBy,
		AssignedTo: issue.AssignedTo,
		StatusText: issue.StatusText,
		CreatedOn:  issue.CreatedOn,
		UpdatedOn:  issue.UpdatedOn,
		Open:       issue.Open,
	}
	result, err := s.collection(project).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert issue: %w", err)
	}
	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert issue: unexpected id type %T", result.InsertedID)
	}
	issue.ID = oid.Hex()
	return issue.ID, nil
}

func (s *MongoStore) UpdateIssue(ctx context.Context, project, id string, patch map[string]any) (UpdateResult, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// An id the store could never have issued matches nothing.
		return UpdateResult{}, nil
	}
	result, err := s.collection(project).UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M(patch)})
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update issue: %w", err)
	}
	return UpdateResult{Matched: result.MatchedCount, Modified: result.ModifiedCount}, nil
}

func (s *MongoStore) FindIssues(ctx context.Context, project string, filter map[string]string) ([]Issue, error) {
	query := bson.M{}
	for key, value := range filter {
		switch key {
		case "_id":
			oid, err := primitive.ObjectIDFromHex(value)
			if err != nil {
				return []Issue{}, nil
			}
			query[key] = oid
		case "open":
			// Stored as a boolean; a non-boolean value can never match.
			open, err := strconv.ParseBool(value)
			if err != nil {
				return []Issue{}, nil
			}
			query[key] = open
		default:
			query[key] = value
		}
	}

	cursor, err := s.collection(project).Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	defer cursor.Close(ctx)

	items := make([]Issue, 0)
	for cursor.Next(ctx) {
		var doc mongoIssue
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode issue: %w", err)
		}
		items = append(items, doc.toIssue())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}
	return items, nil
}

func (s *MongoStore) DeleteIssue(ctx context.Context, project, id string) (*Issue, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var doc mongoIssue
	err = s.collection(project).FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete issue: %w", err)
	}
	issue := doc.toIssue()
	return &issue, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Package dynamo implements the durable store on DynamoDB. Recordings are
// keyed by recording_id; queue items carry a (status, queued_sort) global
// secondary index so oldest-first scans per status are a single Query, and
// an expires_at attribute feeds the table's TTL for terminal-item expiry.
package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/rs/zerolog"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
	"github.com/omspatilgit/BolBharat-AI/internal/store"
)

const statusQueuedIndex = "status-queued_sort-index"

// Config holds table names for the store.
type Config struct {
	RecordingsTable string
	QueueTable      string
}

// Store implements store.DurableStore on DynamoDB.
type Store struct {
	db     dynamodbiface.DynamoDBAPI
	cfg    Config
	logger zerolog.Logger
}

// New creates a DynamoDB-backed store.
func New(db dynamodbiface.DynamoDBAPI, cfg Config, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		cfg:    cfg,
		logger: logger.With().Str("component", "dynamo-store").Logger(),
	}
}

// queuedSort builds the range key for the status index. Zero-padded epoch
// millis first so lexicographic order is capture order, recordingId
// appended so ties are deterministic.
func queuedSort(item *models.QueueItem) string {
	return fmt.Sprintf("%013d#%s", item.QueuedAt.UnixMilli(), item.RecordingID)
}

type queueRow struct {
	models.QueueItem
	QueuedSort string `dynamodbav:"queued_sort"`
}

// PutRecording inserts the recording and its queue item projection. The
// insert is conditioned on the recordingId not existing yet, so re-delivery
// of the same id surfaces as a conflict instead of a silent duplicate.
func (s *Store) PutRecording(ctx context.Context, rec *models.Recording) error {
	av, err := dynamodbattribute.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal recording: %w", err)
	}

	_, err = s.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.cfg.RecordingsTable),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(recording_id)"),
	})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("recording %s: %w", rec.RecordingID, store.ErrKeyExists)
		}
		return fmt.Errorf("put recording: %w", err)
	}

	row := queueRow{QueueItem: *models.ItemFor(rec)}
	row.QueuedSort = queuedSort(&row.QueueItem)
	iv, err := dynamodbattribute.MarshalMap(row)
	if err != nil {
		return fmt.Errorf("marshal queue item: %w", err)
	}
	_, err = s.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.cfg.QueueTable),
		Item:      iv,
	})
	if err != nil {
		return fmt.Errorf("put queue item: %w", err)
	}
	return nil
}

// GetRecording returns the recording for id or store.ErrNotFound.
func (s *Store) GetRecording(ctx context.Context, id string) (*models.Recording, error) {
	out, err := s.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.cfg.RecordingsTable),
		ConsistentRead: aws.Bool(true),
		Key: map[string]*dynamodb.AttributeValue{
			"recording_id": {S: aws.String(id)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("recording %s: %w", id, store.ErrNotFound)
	}

	var rec models.Recording
	if err := dynamodbattribute.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal recording: %w", err)
	}
	return &rec, nil
}

// UpdateRecording writes rec conditioned on the stored status still being
// expectStatus. Losing the condition maps to store.ErrConditionFailed so
// the queue manager can report a lost optimistic race. A condition
// failure on an item that no longer exists maps to store.ErrNotFound
// instead; the two are indistinguishable in the PutItem response, so a
// follow-up read settles it.
func (s *Store) UpdateRecording(ctx context.Context, rec *models.Recording, expectStatus models.Status) error {
	av, err := dynamodbattribute.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal recording: %w", err)
	}

	_, err = s.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.cfg.RecordingsTable),
		Item:                av,
		ConditionExpression: aws.String("#st = :expect"),
		ExpressionAttributeNames: map[string]*string{
			"#st": aws.String("status"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":expect": {S: aws.String(string(expectStatus))},
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			if _, gerr := s.GetRecording(ctx, rec.RecordingID); gerr != nil {
				return gerr
			}
			return fmt.Errorf("recording %s: %w", rec.RecordingID, store.ErrConditionFailed)
		}
		return fmt.Errorf("update recording: %w", err)
	}

	item := models.ItemFor(rec)
	item.LastError = rec.LastError
	row := queueRow{QueueItem: *item, QueuedSort: queuedSort(item)}
	iv, err := dynamodbattribute.MarshalMap(row)
	if err != nil {
		return fmt.Errorf("marshal queue item: %w", err)
	}
	_, err = s.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.cfg.QueueTable),
		Item:      iv,
	})
	if err != nil {
		return fmt.Errorf("update queue item: %w", err)
	}
	return nil
}

// QueryByStatus queries the status index in ascending range-key order,
// which is capture order by construction of queued_sort.
func (s *Store) QueryByStatus(ctx context.Context, status models.Status, limit int) ([]*models.QueueItem, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.cfg.QueueTable),
		IndexName:              aws.String(statusQueuedIndex),
		KeyConditionExpression: aws.String("#st = :status"),
		ExpressionAttributeNames: map[string]*string{
			"#st": aws.String("status"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":status": {S: aws.String(string(status))},
		},
		ScanIndexForward: aws.Bool(true),
	}
	if limit > 0 {
		input.Limit = aws.Int64(int64(limit))
	}

	out, err := s.db.QueryWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}

	items := make([]*models.QueueItem, 0, len(out.Items))
	for _, raw := range out.Items {
		var row queueRow
		if err := dynamodbattribute.UnmarshalMap(raw, &row); err != nil {
			s.logger.Error().Err(err).Msg("skipping unreadable queue item")
			continue
		}
		item := row.QueueItem
		items = append(items, &item)
	}
	return items, nil
}

// ExpireItem sets the TTL attribute on the queue item.
func (s *Store) ExpireItem(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := s.db.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.cfg.QueueTable),
		Key: map[string]*dynamodb.AttributeValue{
			"recording_id": {S: aws.String(id)},
		},
		UpdateExpression: aws.String("SET expires_at = :exp"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":exp": {N: aws.String(fmt.Sprintf("%d", expiresAt.Unix()))},
		},
	})
	if err != nil {
		return fmt.Errorf("expire queue item: %w", err)
	}
	return nil
}

func isConditionFailure(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
	}
	return false
}

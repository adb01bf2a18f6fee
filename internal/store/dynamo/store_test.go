package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/rs/zerolog"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
	"github.com/omspatilgit/BolBharat-AI/internal/store"
)

// fakeDynamo scripts PutItem and GetItem responses; everything else is
// unimplemented.
type fakeDynamo struct {
	dynamodbiface.DynamoDBAPI
	conditionalPutErr error
	item              map[string]*dynamodb.AttributeValue
}

func (f *fakeDynamo) PutItemWithContext(ctx aws.Context, in *dynamodb.PutItemInput, opts ...request.Option) (*dynamodb.PutItemOutput, error) {
	if in.ConditionExpression != nil && f.conditionalPutErr != nil {
		return nil, f.conditionalPutErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItemWithContext(ctx aws.Context, in *dynamodb.GetItemInput, opts ...request.Option) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.item}, nil
}

func testRecording(t *testing.T) *models.Recording {
	t.Helper()
	rec, err := models.NewRecording("user-1", time.Now(), models.AudioMeta{
		DurationSec:  4,
		SampleRateHz: 16000,
		Channels:     1,
		Format:       models.FormatWAV,
	}, models.LanguageHindi)
	if err != nil {
		t.Fatalf("new recording: %v", err)
	}
	rec.Status = models.StatusProcessing
	return rec
}

func TestUpdateRecording_ConditionFailureDistinguishesMissing(t *testing.T) {
	condFail := awserr.New(dynamodb.ErrCodeConditionalCheckFailedException, "conditional check failed", nil)
	cfg := Config{RecordingsTable: "recordings", QueueTable: "recordings-queue"}
	ctx := context.Background()

	t.Run("deleted recording maps to not found", func(t *testing.T) {
		st := New(&fakeDynamo{conditionalPutErr: condFail}, cfg, zerolog.Nop())

		err := st.UpdateRecording(ctx, testRecording(t), models.StatusPending)
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound for a missing item", err)
		}
	})

	t.Run("live recording maps to condition failure", func(t *testing.T) {
		rec := testRecording(t)
		item, err := dynamodbattribute.MarshalMap(rec)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		st := New(&fakeDynamo{conditionalPutErr: condFail, item: item}, cfg, zerolog.Nop())

		err = st.UpdateRecording(ctx, rec, models.StatusPending)
		if !errors.Is(err, store.ErrConditionFailed) {
			t.Errorf("err = %v, want ErrConditionFailed for a lost race", err)
		}
	})
}

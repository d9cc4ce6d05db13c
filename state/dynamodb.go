package state

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/pkg/errors"
)

type storeDynamoDBImpl struct {
	DynamoDB dynamodbiface.DynamoDBAPI
	Table    string
}

var _ Store = (*storeDynamoDBImpl)(nil)

func NewStoreDynamoDB(client dynamodbiface.DynamoDBAPI, table string) *storeDynamoDBImpl {
	return &storeDynamoDBImpl{
		DynamoDB: client,
		Table:    table,
	}
}

type stateItem struct {
	Name          string    `dynamodbav:"name"`
	HighWaterMark time.Time `dynamodbav:"highWaterMark"`
	UpdatedAt     time.Time `dynamodbav:"updatedAt"`
}

func (s *storeDynamoDBImpl) SetHighWaterMark(ctx context.Context, name string, t time.Time) error {
	si := &stateItem{
		Name:          name,
		HighWaterMark: t.UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	item, err := dynamodbattribute.MarshalMap(si)
	if err != nil {
		return err
	}
	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.Table),
		Item:      item,
	}
	_, err = s.DynamoDB.PutItemWithContext(ctx, input)
	return errors.Wrap(err, "storing high-water mark")
}

func (s *storeDynamoDBImpl) HighWaterMark(ctx context.Context, name string) (time.Time, bool, error) {
	var input = &dynamodb.GetItemInput{
		TableName:      aws.String(s.Table),
		ConsistentRead: aws.Bool(true),
		Key: map[string]*dynamodb.AttributeValue{
			"name": {S: aws.String(name)},
		},
	}
	output, err := s.DynamoDB.GetItemWithContext(ctx, input)
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "loading high-water mark")
	}
	if output.Item == nil {
		return time.Time{}, false, nil
	}
	si := &stateItem{}
	if err := dynamodbattribute.UnmarshalMap(output.Item, si); err != nil {
		return time.Time{}, false, err
	}
	return si.HighWaterMark, true, nil
}

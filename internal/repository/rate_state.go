package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"ai-commands/internal/domain"
)

// GetRateState returns the zero state when the user has none yet.
func (c *Client) GetRateState(ctx context.Context, userID string) (domain.RateState, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            keyOf(userPK(userID), skRate),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.RateState{}, fmt.Errorf("repository: GetRateState get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.RateState{}, nil
	}

	used, err := intAttr(out.Item, "tokensUsed")
	if err != nil {
		return domain.RateState{}, fmt.Errorf("repository: GetRateState decode: %w", err)
	}
	version, err := intAttr(out.Item, "version")
	if err != nil {
		return domain.RateState{}, fmt.Errorf("repository: GetRateState decode: %w", err)
	}
	var resetAt time.Time
	if _, ok := out.Item["resetAt"]; ok {
		if resetAt, err = timeAttr(out.Item, "resetAt"); err != nil {
			return domain.RateState{}, fmt.Errorf("repository: GetRateState decode: %w", err)
		}
	}
	return domain.RateState{TokensUsed: int(used), ResetAt: resetAt, Version: version}, nil
}

// PutRateState writes next only if the stored version still equals
// expectedVersion. Version 0 means the item must not exist yet.
func (c *Client) PutRateState(ctx context.Context, userID string, next domain.RateState, expectedVersion int64) error {
	item := keyOf(userPK(userID), skRate)
	item["tokensUsed"] = numVal(next.TokensUsed)
	item["version"] = numVal(next.Version)
	if !next.ResetAt.IsZero() {
		item["resetAt"] = strVal(next.ResetAt.UTC().Format(time.RFC3339Nano))
	}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	}
	if expectedVersion == 0 {
		in.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		in.ConditionExpression = aws.String("version = :expected")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": numVal(expectedVersion),
		}
	}

	if _, err := c.api.PutItem(ctx, in); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("repository: PutRateState: %w", err)
	}
	return nil
}

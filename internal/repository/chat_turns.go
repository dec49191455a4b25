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

const maxUnprocessedRetries = 5

func turnSK(ts time.Time) string {
	return skPrefixTurn + sortTime(ts) + "#" + uniqueSuffix()
}

// AppendTurn persists a chat turn under a time-ordered sort key.
func (c *Client) AppendTurn(ctx context.Context, turn domain.ChatTurn) error {
	if turn.UserID == "" {
		return errors.New("repository: AppendTurn: user id is required")
	}
	item := keyOf(userPK(turn.UserID), turnSK(turn.CreatedAt))
	item["userMessage"] = strVal(turn.UserMessage)
	item["aiResponse"] = strVal(turn.AIResponse)
	item["createdAt"] = strVal(turn.CreatedAt.UTC().Format(time.RFC3339Nano))

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: AppendTurn: %w", err)
	}
	return nil
}

// RecentTurns returns the newest limit turns, oldest first.
func (c *Client) RecentTurns(ctx context.Context, userID string, limit int) ([]domain.ChatTurn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     strVal(userPK(userID)),
			":prefix": strVal(skPrefixTurn),
		},
		// Read newest first so LIMIT keeps the most recent turns.
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	items, err := c.queryAll(ctx, in, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: RecentTurns query: %w", err)
	}

	turns := make([]domain.ChatTurn, 0, len(items))
	for _, item := range items {
		turn, err := itemToTurn(userID, item)
		if err != nil {
			return nil, fmt.Errorf("repository: RecentTurns unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// ClearTurns deletes every turn of the user and reports how many there were.
func (c *Client) ClearTurns(ctx context.Context, userID string) (int, error) {
	items, err := c.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     strVal(userPK(userID)),
			":prefix": strVal(skPrefixTurn),
		},
		ProjectionExpression: aws.String("PK, SK"),
	}, 0)
	if err != nil {
		return 0, fmt.Errorf("repository: ClearTurns query: %w", err)
	}

	for start := 0; start < len(items); start += batchWriteMax {
		end := min(start+batchWriteMax, len(items))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, item := range items[start:end] {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{"PK": item["PK"], "SK": item["SK"]}},
			})
		}
		if err := c.batchWrite(ctx, reqs); err != nil {
			return 0, fmt.Errorf("repository: ClearTurns: %w", err)
		}
	}
	return len(items), nil
}

func (c *Client) batchWrite(ctx context.Context, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{c.tableName: reqs}
	for attempt := 0; attempt < maxUnprocessedRetries; attempt++ {
		out, err := c.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return err
		}
		if out == nil || len(out.UnprocessedItems[c.tableName]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems
	}
	return fmt.Errorf("batch write left %d unprocessed items", len(pending[c.tableName]))
}

func itemToTurn(userID string, item map[string]types.AttributeValue) (domain.ChatTurn, error) {
	msg, err := strAttr(item, "userMessage")
	if err != nil {
		return domain.ChatTurn{}, err
	}
	resp, err := strAttr(item, "aiResponse")
	if err != nil {
		return domain.ChatTurn{}, err
	}
	created, err := timeAttr(item, "createdAt")
	if err != nil {
		return domain.ChatTurn{}, err
	}
	return domain.ChatTurn{UserID: userID, UserMessage: msg, AIResponse: resp, CreatedAt: created}, nil
}

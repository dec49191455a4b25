package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"ai-commands/internal/domain"
)

// Transactions sort by TXN#<date>#<created>#<id> so a key range selects a
// date range.
func txnSK(tx domain.Transaction) string {
	return skPrefixTxn + tx.Date + "#" + sortTime(tx.CreatedAt) + "#" + tx.ID
}

func (c *Client) InsertTransaction(ctx context.Context, tx domain.Transaction) error {
	item := keyOf(userPK(tx.UserID), txnSK(tx))
	item["id"] = strVal(tx.ID)
	item["title"] = strVal(tx.Title)
	item["amount"] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(tx.Amount, 'f', -1, 64)}
	item["kind"] = strVal(tx.Kind)
	item["date"] = strVal(tx.Date)
	item["createdAt"] = strVal(tx.CreatedAt.UTC().Format(time.RFC3339Nano))
	return c.insert(ctx, "InsertTransaction", item)
}

func (c *Client) InsertTodo(ctx context.Context, todo domain.Todo) error {
	item := keyOf(userPK(todo.UserID), skPrefixTodo+sortTime(todo.CreatedAt)+"#"+todo.ID)
	item["id"] = strVal(todo.ID)
	item["title"] = strVal(todo.Title)
	item["status"] = strVal(todo.Status)
	item["createdAt"] = strVal(todo.CreatedAt.UTC().Format(time.RFC3339Nano))
	return c.insert(ctx, "InsertTodo", item)
}

func (c *Client) InsertPost(ctx context.Context, post domain.Post) error {
	item := keyOf(userPK(post.UserID), skPrefixPost+sortTime(post.CreatedAt)+"#"+post.ID)
	item["id"] = strVal(post.ID)
	item["title"] = strVal(post.Title)
	item["content"] = strVal(post.Content)
	item["createdAt"] = strVal(post.CreatedAt.UTC().Format(time.RFC3339Nano))
	return c.insert(ctx, "InsertPost", item)
}

func (c *Client) insert(ctx context.Context, op string, item map[string]types.AttributeValue) error {
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: %s: %w", op, err)
	}
	return nil
}

// ListTransactions returns transactions dated within [from, to], newest
// first. Empty bounds are open.
func (c *Client) ListTransactions(ctx context.Context, userID, from, to string) ([]domain.Transaction, error) {
	values := map[string]types.AttributeValue{":pk": strVal(userPK(userID))}
	var cond string
	switch {
	case from == "" && to == "":
		cond = "PK = :pk AND begins_with(SK, :prefix)"
		values[":prefix"] = strVal(skPrefixTxn)
	default:
		// "~" sorts after every character used in the date suffix.
		lo, hi := skPrefixTxn+from, skPrefixTxn+"~"
		if to != "" {
			hi = skPrefixTxn + to + "#~"
		}
		cond = "PK = :pk AND SK BETWEEN :lo AND :hi"
		values[":lo"] = strVal(lo)
		values[":hi"] = strVal(hi)
	}

	items, err := c.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(c.tableName),
		KeyConditionExpression:    aws.String(cond),
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false),
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("repository: ListTransactions query: %w", err)
	}

	txs := make([]domain.Transaction, 0, len(items))
	for _, item := range items {
		tx, err := itemToTransaction(userID, item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListTransactions unmarshal: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// CountOpenTodos counts todos whose status is not completed.
func (c *Client) CountOpenTodos(ctx context.Context, userID string) (int, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		FilterExpression:       aws.String("#status <> :completed"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":        strVal(userPK(userID)),
			":prefix":    strVal(skPrefixTodo),
			":completed": strVal(domain.TodoCompleted),
		},
		Select: types.SelectCount,
	}

	total := 0
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return 0, fmt.Errorf("repository: CountOpenTodos query: %w", err)
		}
		total += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// RecentPosts returns the newest limit posts, newest first.
func (c *Client) RecentPosts(ctx context.Context, userID string, limit int) ([]domain.Post, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     strVal(userPK(userID)),
			":prefix": strVal(skPrefixPost),
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}
	items, err := c.queryAll(ctx, in, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: RecentPosts query: %w", err)
	}

	posts := make([]domain.Post, 0, len(items))
	for _, item := range items {
		post, err := itemToPost(userID, item)
		if err != nil {
			return nil, fmt.Errorf("repository: RecentPosts unmarshal: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func itemToTransaction(userID string, item map[string]types.AttributeValue) (domain.Transaction, error) {
	var tx domain.Transaction
	var err error
	if tx.ID, err = strAttr(item, "id"); err != nil {
		return tx, err
	}
	if tx.Title, err = strAttr(item, "title"); err != nil {
		return tx, err
	}
	if tx.Amount, err = floatAttr(item, "amount"); err != nil {
		return tx, err
	}
	if tx.Kind, err = strAttr(item, "kind"); err != nil {
		return tx, err
	}
	if tx.Date, err = strAttr(item, "date"); err != nil {
		return tx, err
	}
	if tx.CreatedAt, err = timeAttr(item, "createdAt"); err != nil {
		return tx, err
	}
	tx.UserID = userID
	return tx, nil
}

func itemToPost(userID string, item map[string]types.AttributeValue) (domain.Post, error) {
	var p domain.Post
	var err error
	if p.ID, err = strAttr(item, "id"); err != nil {
		return p, err
	}
	if p.Title, err = strAttr(item, "title"); err != nil {
		return p, err
	}
	if p.Content, err = strAttr(item, "content"); err != nil {
		return p, err
	}
	if p.CreatedAt, err = timeAttr(item, "createdAt"); err != nil {
		return p, err
	}
	p.UserID = userID
	return p, nil
}

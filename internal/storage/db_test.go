package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ai-commands/internal/domain"
	"ai-commands/internal/history"
	"ai-commands/internal/ratelimit"
	"ai-commands/internal/resources"
)

// Compile-time checks that DB satisfies every consumer's store.
var (
	_ ratelimit.Store = (*DB)(nil)
	_ history.Store   = (*DB)(nil)
	_ resources.Store = (*DB)(nil)
)

// DBTestSuite provides a test suite for database operations
type DBTestSuite struct {
	suite.Suite
	db  *DB
	ctx context.Context
}

// SetupTest runs before each test
func (suite *DBTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()
}

// TearDownTest runs after each test
func (suite *DBTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

var base = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func (suite *DBTestSuite) TestRateState_MissingIsZero() {
	s, err := suite.db.GetRateState(suite.ctx, "u1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), domain.RateState{}, s)
}

func (suite *DBTestSuite) TestRateState_InsertThenVersionedUpdate() {
	t := suite.T()
	first := domain.RateState{TokensUsed: 1, ResetAt: base.Add(5 * time.Hour), Version: 1}
	require.NoError(t, suite.db.PutRateState(suite.ctx, "u1", first, 0))

	got, err := suite.db.GetRateState(suite.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.TokensUsed)
	assert.EqualValues(t, 1, got.Version)
	assert.True(t, first.ResetAt.Equal(got.ResetAt))

	// A second insert for the same user loses.
	assert.ErrorIs(t, suite.db.PutRateState(suite.ctx, "u1", first, 0), domain.ErrVersionConflict)

	second := domain.RateState{TokensUsed: 2, ResetAt: first.ResetAt, Version: 2}
	require.NoError(t, suite.db.PutRateState(suite.ctx, "u1", second, 1))
	assert.ErrorIs(t, suite.db.PutRateState(suite.ctx, "u1", second, 1), domain.ErrVersionConflict)

	got, err = suite.db.GetRateState(suite.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.TokensUsed)
	assert.EqualValues(t, 2, got.Version)
}

func (suite *DBTestSuite) TestRateState_WorksWithLimiter() {
	t := suite.T()
	limiter, err := ratelimit.New(suite.db, ratelimit.WithClock(func() time.Time { return base }))
	require.NoError(t, err)

	var mu sync.Mutex
	allowed := 0
	var wg sync.WaitGroup
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := limiter.Acquire(suite.ctx, "u1")
			if err == nil && st.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)

	got, err := suite.db.GetRateState(suite.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, got.TokensUsed)
}

func (suite *DBTestSuite) TestTurns_RecentIsOldestFirstAndCapped() {
	t := suite.T()
	for i := 0; i < 5; i++ {
		require.NoError(t, suite.db.AppendTurn(suite.ctx, domain.ChatTurn{
			UserID:      "u1",
			UserMessage: fmt.Sprintf("msg %d", i),
			AIResponse:  fmt.Sprintf("re %d", i),
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, suite.db.AppendTurn(suite.ctx, domain.ChatTurn{UserID: "u2", UserMessage: "x", AIResponse: "y", CreatedAt: base}))

	turns, err := suite.db.RecentTurns(suite.ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "msg 2", turns[0].UserMessage)
	assert.Equal(t, "msg 4", turns[2].UserMessage)
	assert.Equal(t, "re 4", turns[2].AIResponse)
	assert.True(t, base.Add(4*time.Second).Equal(turns[2].CreatedAt))
}

func (suite *DBTestSuite) TestTurns_Clear() {
	t := suite.T()
	for _, u := range []string{"u1", "u1", "u2"} {
		require.NoError(t, suite.db.AppendTurn(suite.ctx, domain.ChatTurn{UserID: u, UserMessage: "a", AIResponse: "b", CreatedAt: base}))
	}

	n, err := suite.db.ClearTurns(suite.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	turns, err := suite.db.RecentTurns(suite.ctx, "u1", 50)
	require.NoError(t, err)
	assert.Empty(t, turns)

	turns, err = suite.db.RecentTurns(suite.ctx, "u2", 50)
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func (suite *DBTestSuite) TestListTransactions_RangeAndOrder() {
	t := suite.T()
	txs := []domain.Transaction{
		{ID: "a", UserID: "u1", Title: "rent", Amount: 500, Kind: "expense", Date: "2026-10-01", CreatedAt: base},
		{ID: "b", UserID: "u1", Title: "salary", Amount: 1000, Kind: "income", Date: "2026-10-14", CreatedAt: base},
		{ID: "c", UserID: "u1", Title: "lunch", Amount: 50.5, Kind: "expense", Date: "2026-10-14", CreatedAt: base.Add(time.Minute)},
		{ID: "d", UserID: "u1", Title: "old", Amount: 1, Kind: "expense", Date: "2026-09-30", CreatedAt: base},
		{ID: "e", UserID: "u2", Title: "other", Amount: 1, Kind: "expense", Date: "2026-10-14", CreatedAt: base},
	}
	for _, tx := range txs {
		require.NoError(t, suite.db.InsertTransaction(suite.ctx, tx))
	}

	got, err := suite.db.ListTransactions(suite.ctx, "u1", "2026-10-01", "2026-10-31")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "a", got[2].ID)
	assert.Equal(t, 50.5, got[0].Amount)
	assert.Equal(t, "u1", got[0].UserID)

	all, err := suite.db.ListTransactions(suite.ctx, "u1", "", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func (suite *DBTestSuite) TestTodosAndPosts() {
	t := suite.T()
	for i, status := range []string{domain.TodoPending, domain.TodoInProgress, domain.TodoCompleted} {
		require.NoError(t, suite.db.InsertTodo(suite.ctx, domain.Todo{
			ID: fmt.Sprintf("t%d", i), UserID: "u1", Title: "x", Status: status, CreatedAt: base,
		}))
	}
	n, err := suite.db.CountOpenTodos(suite.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for i := 0; i < 4; i++ {
		require.NoError(t, suite.db.InsertPost(suite.ctx, domain.Post{
			ID: fmt.Sprintf("p%d", i), UserID: "u1", Title: fmt.Sprintf("post %d", i), Content: "c",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	posts, err := suite.db.RecentPosts(suite.ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "p3", posts[0].ID)
	assert.Equal(t, "p1", posts[2].ID)
}

func (suite *DBTestSuite) TestDuplicateIDRejected() {
	t := suite.T()
	post := domain.Post{ID: "p1", UserID: "u1", Title: "a", Content: "b", CreatedAt: base}
	require.NoError(t, suite.db.InsertPost(suite.ctx, post))
	assert.Error(t, suite.db.InsertPost(suite.ctx, post))
}

func (suite *DBTestSuite) TestServiceRoundTrip() {
	t := suite.T()
	svc, err := resources.New(suite.db, resources.WithClock(func() time.Time { return base }))
	require.NoError(t, err)

	_, err = svc.CreateTransaction(suite.ctx, "u1", resources.TransactionInput{Title: "salary", Amount: "1000", Kind: "income"})
	require.NoError(t, err)
	_, err = svc.CreateTransaction(suite.ctx, "u1", resources.TransactionInput{Title: "lunch", Amount: "50", Kind: "expense"})
	require.NoError(t, err)
	_, err = svc.CreateTodo(suite.ctx, "u1", resources.TodoInput{Title: "Buy milk"})
	require.NoError(t, err)

	d, err := svc.Dashboard(suite.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 950.0, d.Balance)
	assert.Equal(t, 1, d.PendingTodos)
	assert.Empty(t, d.RecentPosts)
}

// TestDBSuite runs the DB test suite
func TestDBSuite(t *testing.T) {
	suite.Run(t, new(DBTestSuite))
}

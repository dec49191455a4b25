package resources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ai-commands/internal/domain"
)

// Summary lists the user's transactions for the day, month or year that
// contains date. An empty view means daily and an empty date means today.
func (s *Service) Summary(ctx context.Context, userID, view, date string) (domain.Summary, error) {
	view = strings.ToLower(strings.TrimSpace(view))
	if view == "" {
		view = ViewDaily
	}

	day := s.now()
	if d := strings.TrimSpace(date); d != "" {
		parsed, err := time.ParseInLocation(dateLayout, d, day.Location())
		if err != nil {
			return domain.Summary{}, fmt.Errorf("%w: date %q", ErrInvalidReport, d)
		}
		day = parsed
	}

	from, to, err := reportRange(view, day)
	if err != nil {
		return domain.Summary{}, err
	}

	txs, err := s.store.ListTransactions(ctx, userID, from, to)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("resources: list transactions: %w", err)
	}
	income, expense := totals(txs)
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return domain.Summary{
		View:         view,
		From:         from,
		To:           to,
		Transactions: txs,
		TotalIncome:  income,
		TotalExpense: expense,
		Net:          income - expense,
	}, nil
}

// Dashboard reports all-time balance, the open todo count and the latest
// posts.
func (s *Service) Dashboard(ctx context.Context, userID string) (domain.Dashboard, error) {
	var (
		txs   []domain.Transaction
		open  int
		posts []domain.Post
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if txs, err = s.store.ListTransactions(gctx, userID, "", ""); err != nil {
			return fmt.Errorf("resources: list transactions: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if open, err = s.store.CountOpenTodos(gctx, userID); err != nil {
			return fmt.Errorf("resources: count todos: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if posts, err = s.store.RecentPosts(gctx, userID, recentPostsLimit); err != nil {
			return fmt.Errorf("resources: recent posts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Dashboard{}, err
	}
	if posts == nil {
		posts = []domain.Post{}
	}

	income, expense := totals(txs)
	return domain.Dashboard{
		Income:       income,
		Expense:      expense,
		Balance:      income - expense,
		PendingTodos: open,
		RecentPosts:  posts,
	}, nil
}

func reportRange(view string, day time.Time) (string, string, error) {
	y, m, d := day.Date()
	loc := day.Location()
	var from, to time.Time
	switch view {
	case ViewDaily:
		from = time.Date(y, m, d, 0, 0, 0, 0, loc)
		to = from
	case ViewMonthly:
		from = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		to = from.AddDate(0, 1, -1)
	case ViewYearly:
		from = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		to = time.Date(y, time.December, 31, 0, 0, 0, 0, loc)
	default:
		return "", "", fmt.Errorf("%w: view %q", ErrInvalidReport, view)
	}
	return from.Format(dateLayout), to.Format(dateLayout), nil
}

// totals treats any kind other than income as an expense.
func totals(txs []domain.Transaction) (income, expense float64) {
	for _, tx := range txs {
		if strings.EqualFold(tx.Kind, domain.TransactionIncome) {
			income += tx.Amount
			continue
		}
		expense += tx.Amount
	}
	return income, expense
}

package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/bookingpay/internal/logger"
	"github.com/flexprice/bookingpay/internal/postgres"
)

var _ postgres.IClient = (*InMemoryTxClient)(nil)

type journalKey struct{}

// txJournal collects the compensations of one unit of work
type txJournal struct {
	mu       sync.Mutex
	undo     []func()
	releases []func()
}

func (j *txJournal) addUndo(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.undo = append(j.undo, fn)
}

func (j *txJournal) addRelease(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.releases = append(j.releases, fn)
}

func (j *txJournal) rollback() {
	j.mu.Lock()
	undo := j.undo
	j.undo = nil
	j.mu.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

func (j *txJournal) release() {
	j.mu.Lock()
	releases := j.releases
	j.releases = nil
	j.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
}

func journalFrom(ctx context.Context) *txJournal {
	j, _ := ctx.Value(journalKey{}).(*txJournal)
	return j
}

// RecordUndo registers fn to run if the enclosing unit of work fails.
// Outside a unit of work writes are final and fn is dropped.
func RecordUndo(ctx context.Context, fn func()) {
	if j := journalFrom(ctx); j != nil {
		j.addUndo(fn)
	}
}

// HoldUntilTxEnd defers release until the enclosing unit of work ends, the
// in-memory counterpart of a row lock. Outside a unit of work it releases at once.
func HoldUntilTxEnd(ctx context.Context, release func()) {
	if j := journalFrom(ctx); j != nil {
		j.addRelease(release)
		return
	}
	release()
}

// InMemoryTxClient implements postgres.IClient over the in-memory stores
type InMemoryTxClient struct {
	logger *logger.Logger
}

// NewInMemoryTxClient creates a unit-of-work client for tests
func NewInMemoryTxClient(logger *logger.Logger) postgres.IClient {
	return &InMemoryTxClient{logger: logger}
}

// WithTx runs fn with an undo journal. A nested call behaves like a savepoint:
// its own writes are undone on failure while locks stay with the outer unit.
func (c *InMemoryTxClient) WithTx(ctx context.Context, fn func(context.Context) error) (err error) {
	parent := journalFrom(ctx)
	j := &txJournal{}
	txCtx := context.WithValue(ctx, journalKey{}, j)

	finish := func(failed bool) {
		if failed {
			j.rollback()
		}
		if parent != nil {
			if !failed {
				for _, u := range j.undo {
					parent.addUndo(u)
				}
			}
			for _, r := range j.releases {
				parent.addRelease(r)
			}
			return
		}
		j.release()
	}

	defer func() {
		if r := recover(); r != nil {
			finish(true)
			panic(r)
		}
	}()

	if err = fn(txCtx); err != nil {
		c.logger.Debugw("in-memory transaction rolled back", "error", err)
		finish(true)
		return err
	}

	finish(false)
	return nil
}

package testutil

import (
	"context"
	"sync"

	"github.com/BabaYagaSystems/aroundly-backend/internal/data/aggregates"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/dbctx"
)

// InjectedTxRunner runs aggregate bodies without a database and can inject
// begin/body/commit failures. Commit failures can be limited to the first N transactions.
type InjectedTxRunner struct {
	mu sync.Mutex

	FailBegin      error
	FailBeforeBody error
	FailCommit     error
	// FailCommitTimes limits FailCommit to the first N commits; zero means always.
	FailCommitTimes int

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int

	failedCommits int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	failBegin := r.FailBegin
	failBeforeBody := r.FailBeforeBody
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if failBeforeBody != nil {
		r.rollback()
		return failBeforeBody
	}
	if fn != nil {
		if err := fn(dbctx.Context{Ctx: ctx}); err != nil {
			r.rollback()
			return err
		}
	}
	if err := r.commitFailure(); err != nil {
		r.rollback()
		return err
	}
	r.mu.Lock()
	r.CommitCalls++
	r.mu.Unlock()
	return nil
}

func (r *InjectedTxRunner) rollback() {
	r.mu.Lock()
	r.RollbackCalls++
	r.mu.Unlock()
}

func (r *InjectedTxRunner) commitFailure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCommit == nil {
		return nil
	}
	if r.FailCommitTimes > 0 && r.failedCommits >= r.FailCommitTimes {
		return nil
	}
	r.failedCommits++
	return r.FailCommit
}

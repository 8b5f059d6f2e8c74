package sniper

import (
	"context"
	"sync/atomic"
)

// Token is the write-once abort flag shared by every worker of one run.
// Once aborted it stays aborted; a new run gets a new Token.
type Token struct {
	aborted atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	stopWatch func() bool
}

// NewToken derives the request context from parent. Cancelling parent
// aborts the token.
func NewToken(parent context.Context) *Token {
	ctx, cancel := context.WithCancel(parent)
	t := &Token{ctx: ctx, cancel: cancel}
	t.stopWatch = context.AfterFunc(parent, t.Abort)
	return t
}

// Abort sets the flag and tears down in-flight requests. Safe to call
// more than once and from any goroutine.
func (t *Token) Abort() {
	t.aborted.Store(true)
	t.cancel()
}

func (t *Token) Aborted() bool { return t.aborted.Load() }

// Done is closed once the token is aborted or released.
func (t *Token) Done() <-chan struct{} { return t.ctx.Done() }

// Context is tied to the token; checker requests use it.
func (t *Token) Context() context.Context { return t.ctx }

// release frees the derived context after the run settled without
// touching the abort flag.
func (t *Token) release() {
	t.stopWatch()
	t.cancel()
}

package poller

import (
	"context"
	"log"
	"time"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/telegram"
)

// LockKey names the poll lease. One lease per bot credential: Telegram
// rejects concurrent long polls on the same token with a 409.
const LockKey = "telegram_helpdesk_polling"

const (
	maxPollTimeout = 25 * time.Second
	safetyMargin   = 5 * time.Second
)

type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

type Transport interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) []telegram.Update
}

type Dispatcher interface {
	ProcessUpdate(ctx context.Context, upd telegram.Update) error
}

// Cursor is the durable last-processed-update-id singleton. *bridge.Repo
// satisfies it.
type Cursor interface {
	LastUpdateID(ctx context.Context) (int64, error)
	SetLastUpdateID(ctx context.Context, id int64) error
}

type Poller struct {
	lock     Locker
	tg       Transport
	dispatch Dispatcher
	cursor   Cursor

	budget  time.Duration
	lockTTL time.Duration
}

func New(lock Locker, tg Transport, dispatch Dispatcher, cursor Cursor, budget, lockTTL time.Duration) *Poller {
	if budget <= 0 {
		budget = 55 * time.Second
	}
	if lockTTL <= 0 {
		lockTTL = 65 * time.Second
	}
	return &Poller{lock: lock, tg: tg, dispatch: dispatch, cursor: cursor, budget: budget, lockTTL: lockTTL}
}

// RunCycle runs one bounded poll cycle. When another poller holds the lease
// the cycle is a no-op. The lease is released unconditionally on exit.
func (p *Poller) RunCycle(ctx context.Context) error {
	ok, err := p.lock.AcquireLock(ctx, LockKey, p.lockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer func() {
		// Release must survive a cancelled cycle context.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := p.lock.ReleaseLock(rctx, LockKey); err != nil {
			log.Printf("poller: release lock: %v", err)
		}
	}()

	deadline := time.Now().Add(p.budget)

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Read the cursor fresh each iteration; another process may have
		// advanced it between restarts.
		last, err := p.cursor.LastUpdateID(ctx)
		if err != nil {
			return err
		}
		offset := last + 1

		timeout := time.Until(deadline) - safetyMargin
		if timeout > maxPollTimeout {
			timeout = maxPollTimeout
		}
		if timeout < time.Second {
			break
		}

		updates := p.tg.GetUpdates(ctx, offset, timeout)

		for _, upd := range updates {
			p.dispatchOne(ctx, upd)

			// Advance per event, not per batch: a crash mid-batch must not
			// re-process already-dispatched updates.
			if err := p.cursor.SetLastUpdateID(ctx, upd.UpdateID); err != nil {
				log.Printf("poller: advance cursor to %d: %v", upd.UpdateID, err)
			}
		}
	}
	return nil
}

// dispatchOne isolates one update: an error or panic is logged and never
// blocks the rest of the batch or cursor advancement.
func (p *Poller) dispatchOne(ctx context.Context, upd telegram.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("poller: panic on update %d: %v", upd.UpdateID, rec)
		}
	}()
	if err := p.dispatch.ProcessUpdate(ctx, upd); err != nil {
		log.Printf("poller: update %d: %v", upd.UpdateID, err)
	}
}

// Run invokes RunCycle on a fixed interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		if err := p.RunCycle(ctx); err != nil && ctx.Err() == nil {
			log.Printf("poller: cycle failed cost=%s err=%v", time.Since(start), err)
		}

		select {
		case <-ctx.Done():
			log.Printf("poller: shutting down")
			return
		case <-ticker.C:
		}
	}
}

package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/telegram"
)

type fakeLocker struct {
	held     bool
	acquired int
	released int
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.acquired++
	return !l.held, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key string) error {
	l.released++
	return nil
}

// fakeTransport serves queued batches instantly, then emulates an idle long
// poll by sleeping out the requested timeout.
type fakeTransport struct {
	mu      sync.Mutex
	batches [][]telegram.Update
	offsets []int64
	calls   int
}

func (f *fakeTransport) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) []telegram.Update {
	f.mu.Lock()
	f.calls++
	f.offsets = append(f.offsets, offset)
	var batch []telegram.Update
	if len(f.batches) > 0 {
		batch = f.batches[0]
		f.batches = f.batches[1:]
	}
	f.mu.Unlock()

	if batch == nil {
		select {
		case <-ctx.Done():
		case <-time.After(timeout):
		}
	}
	return batch
}

type fakeDispatcher struct {
	failOn  map[int64]bool
	panicOn map[int64]bool

	processed []int64
}

func (d *fakeDispatcher) ProcessUpdate(ctx context.Context, upd telegram.Update) error {
	if d.panicOn[upd.UpdateID] {
		panic("boom")
	}
	d.processed = append(d.processed, upd.UpdateID)
	if d.failOn[upd.UpdateID] {
		return errors.New("dispatch failed")
	}
	return nil
}

type memCursor struct {
	v       int64
	history []int64
}

func (c *memCursor) LastUpdateID(ctx context.Context) (int64, error) { return c.v, nil }

func (c *memCursor) SetLastUpdateID(ctx context.Context, id int64) error {
	c.v = id
	c.history = append(c.history, id)
	return nil
}

func batch(ids ...int64) []telegram.Update {
	out := make([]telegram.Update, 0, len(ids))
	for _, id := range ids {
		out = append(out, telegram.Update{UpdateID: id})
	}
	return out
}

const testBudget = 6500 * time.Millisecond

func TestCursorAdvancesPastFailedDispatch(t *testing.T) {
	lock := &fakeLocker{}
	tg := &fakeTransport{batches: [][]telegram.Update{batch(11, 12, 13)}}
	disp := &fakeDispatcher{failOn: map[int64]bool{12: true}}
	cur := &memCursor{v: 10}

	p := New(lock, tg, disp, cur, testBudget, time.Minute)
	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	if cur.v != 13 {
		t.Fatalf("expected cursor 13, got %d", cur.v)
	}
	// The cursor is committed per event, not per batch.
	want := []int64{11, 12, 13}
	if len(cur.history) != len(want) {
		t.Fatalf("expected %v advancements, got %v", want, cur.history)
	}
	for i, id := range want {
		if cur.history[i] != id {
			t.Fatalf("expected advancement %d to be %d, got %d", i, id, cur.history[i])
		}
	}
	if len(tg.offsets) == 0 || tg.offsets[0] != 11 {
		t.Fatalf("expected first offset 11, got %v", tg.offsets)
	}
}

func TestPanicInDispatchDoesNotAbortBatch(t *testing.T) {
	lock := &fakeLocker{}
	tg := &fakeTransport{batches: [][]telegram.Update{batch(11, 12, 13)}}
	disp := &fakeDispatcher{panicOn: map[int64]bool{12: true}}
	cur := &memCursor{v: 10}

	p := New(lock, tg, disp, cur, testBudget, time.Minute)
	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	if cur.v != 13 {
		t.Fatalf("expected cursor 13 despite panic, got %d", cur.v)
	}
	if len(disp.processed) != 2 {
		t.Fatalf("expected updates 11 and 13 processed, got %v", disp.processed)
	}
}

func TestLockHeldSkipsCycle(t *testing.T) {
	lock := &fakeLocker{held: true}
	tg := &fakeTransport{}
	disp := &fakeDispatcher{}
	cur := &memCursor{}

	p := New(lock, tg, disp, cur, testBudget, time.Minute)
	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	if tg.calls != 0 {
		t.Fatalf("expected zero transport calls while lock held, got %d", tg.calls)
	}
	if lock.released != 0 {
		t.Fatalf("lock must not be released by a non-holder, released %d times", lock.released)
	}
}

func TestLockReleasedAfterCycle(t *testing.T) {
	lock := &fakeLocker{}
	tg := &fakeTransport{batches: [][]telegram.Update{batch(1)}}
	disp := &fakeDispatcher{}
	cur := &memCursor{}

	p := New(lock, tg, disp, cur, testBudget, time.Minute)
	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	if lock.acquired != 1 || lock.released != 1 {
		t.Fatalf("expected acquire/release once, got %d/%d", lock.acquired, lock.released)
	}
}

func TestFreshCursorReadEachIteration(t *testing.T) {
	lock := &fakeLocker{}
	tg := &fakeTransport{batches: [][]telegram.Update{batch(11), batch(12)}}
	disp := &fakeDispatcher{}
	cur := &memCursor{v: 10}

	p := New(lock, tg, disp, cur, testBudget, time.Minute)
	if err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	if len(tg.offsets) < 2 {
		t.Fatalf("expected at least two poll calls, got %v", tg.offsets)
	}
	if tg.offsets[0] != 11 || tg.offsets[1] != 12 {
		t.Fatalf("expected offsets 11 then 12, got %v", tg.offsets)
	}
}

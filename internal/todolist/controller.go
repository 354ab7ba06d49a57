package todolist

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/idilsaglam/todosync/internal/metrics"
	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/store"
)

// Controller holds the todo list for one session.
type Controller struct {
	policy  Policy
	remote  Remote
	mirror  store.Mirror
	logger  *log.Logger
	metrics *metrics.Sync
	now     func() time.Time

	mu      sync.Mutex
	items   []model.Item
	loading bool
	pending int
}

// Option configures a Controller.
type Option func(*Controller)

// WithMirror sets the local store. Policies that do not mirror ignore it.
func WithMirror(m store.Mirror) Option {
	return func(c *Controller) { c.mirror = m }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics records request outcomes on s.
func WithMetrics(s *metrics.Sync) Option {
	return func(c *Controller) { c.metrics = s }
}

// WithClock overrides time.Now for client-side ids.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New returns a Controller in the loading state with an empty list.
func New(p Policy, r Remote, opts ...Option) *Controller {
	c := &Controller{
		policy:  p,
		remote:  r,
		now:     time.Now,
		items:   []model.Item{},
		loading: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if !p.Mirrors() {
		c.mirror = nil
	}
	return c
}

// Policy returns the sync discipline in use.
func (c *Controller) Policy() Policy { return c.policy }

// Items returns a snapshot of the list.
func (c *Controller) Items() []model.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.Clone(c.items)
}

// Loading reports whether Load has not finished yet.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Pending returns how many tasks were begun but not settled.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Load fills the list at startup. Failures are logged, never returned:
// loading always completes.
func (c *Controller) Load(ctx context.Context) LoadResult {
	res := c.policy.Load(ctx, c.remote, c.mirror)

	if res.RemoteErr != nil {
		c.logger.Warn("remote list unavailable", "mode", c.policy.Mode(), "fallback", res.Source, "err", res.RemoteErr)
	}
	if res.MirrorErr != nil {
		c.logger.Error("read saved snapshot", "err", res.MirrorErr)
	}
	c.metrics.Loaded(res.Source)

	c.mu.Lock()
	c.items = model.Clone(res.Items)
	c.loading = false
	items := model.Clone(c.items)
	c.mu.Unlock()

	if res.Source == metrics.SourceRemote {
		c.save(ctx, items)
	}
	c.logger.Info("list loaded", "source", res.Source, "items", len(items))
	return res
}

// Add starts adding an item with text. Blank text is rejected with
// model.ErrEmptyText and nothing changes.
func (c *Controller) Add(text string) (*Task, error) {
	text, err := model.ValidateText(text)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	it := c.policy.NewItem(text, c.now())
	if it.ID != "" {
		it.ID = c.uniqueID(it.ID)
	}
	t, items, changed := c.beginLocked(AddMutation{Item: it})
	c.mu.Unlock()

	if changed {
		c.save(context.Background(), items)
	}
	return t, nil
}

// Toggle starts flipping the completed flag of id. Unknown ids are a no-op
// and return a nil Task.
func (c *Controller) Toggle(id model.ID) *Task {
	c.mu.Lock()
	it, ok := model.Find(c.items, id)
	if !ok {
		c.mu.Unlock()
		c.logger.Debug("toggle ignored, no such item", "id", id)
		return nil
	}
	t, items, changed := c.beginLocked(ToggleMutation{ID: id, Completed: !it.Completed})
	c.mu.Unlock()

	if changed {
		c.save(context.Background(), items)
	}
	return t
}

// Delete starts removing id. The remote call goes out even when the id is
// not in the local list, since the two copies may have diverged.
func (c *Controller) Delete(id model.ID) *Task {
	return c.Begin(DeleteMutation{ID: id})
}

// Begin applies whatever local part of m the policy allows and returns the
// task that will carry it to the remote.
func (c *Controller) Begin(m Mutation) *Task {
	c.mu.Lock()
	t, items, changed := c.beginLocked(m)
	c.mu.Unlock()

	if changed {
		c.save(context.Background(), items)
	}
	return t
}

// beginLocked is Begin with c.mu held. It returns the list to mirror when
// it changed.
func (c *Controller) beginLocked(m Mutation) (*Task, []model.Item, bool) {
	before := c.items
	c.items = c.policy.Before(c.items, m)
	changed := !model.Equal(before, c.items)
	if add, ok := m.(AddMutation); ok && !changed && c.policy.Mirrors() {
		c.logger.Warn("item not added locally, id already in list", "id", add.Item.ID)
	}
	c.pending++
	t := &Task{
		mutation: m,
		remote:   c.remote,
		consume:  c.policy.ConsumesResponse(),
		metrics:  c.metrics,
	}
	return t, model.Clone(c.items), changed
}

// Settle applies a finished task's outcome. It is terminal for the task.
func (c *Controller) Settle(res Result) {
	t := res.Task
	if t == nil || t.State() != StateInFlight {
		return
	}
	m := t.mutation

	c.mu.Lock()
	before := c.items
	if res.Err != nil {
		c.items = c.policy.OnFailure(c.items, m, res.Err)
		t.state.Store(int32(StateFailed))
	} else {
		c.items = c.policy.OnSuccess(c.items, m, res.Item)
		t.state.Store(int32(StateSucceeded))
	}
	changed := !model.Equal(before, c.items)
	items := model.Clone(c.items)
	c.pending--
	c.mu.Unlock()

	t.metrics.Settled(m.Op(), res.Err)
	if res.Err != nil {
		c.logger.Warn("background sync failed", "op", m.Op(), "id", m.Target(), "mode", c.policy.Mode(), "err", res.Err)
	} else {
		if c.policy.ConsumesResponse() && m.Op() == OpAdd {
			switch {
			case res.Item == nil:
				c.logger.Warn("server accepted item without returning it", "op", m.Op())
			case !changed:
				c.logger.Warn("server item not added, id already in list", "op", m.Op(), "id", res.Item.ID)
			}
		}
		c.logger.Debug("synced", "op", m.Op(), "id", m.Target())
	}
	if changed {
		c.save(context.Background(), items)
	}
}

// Sync runs t inline and settles it. A nil task yields a zero Result.
func (c *Controller) Sync(ctx context.Context, t *Task) Result {
	if t == nil {
		return Result{}
	}
	res := t.Run(ctx)
	c.Settle(res)
	return res
}

func (c *Controller) save(ctx context.Context, items []model.Item) {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.Save(ctx, items); err != nil {
		c.logger.Error("mirror list", "err", err)
	}
}

// uniqueID bumps a numeric client id until it no longer collides. Callers
// hold c.mu.
func (c *Controller) uniqueID(id model.ID) model.ID {
	for model.Index(c.items, id) >= 0 {
		next, err := bump(id)
		if err != nil {
			return id
		}
		id = next
	}
	return id
}

var errNotNumeric = errors.New("id is not numeric")

func bump(id model.ID) (model.ID, error) {
	var n int64
	for _, r := range id {
		if r < '0' || r > '9' {
			return id, errNotNumeric
		}
		n = n*10 + int64(r-'0')
	}
	return model.NewClientID(time.UnixMilli(n + 1)), nil
}

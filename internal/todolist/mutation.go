package todolist

import (
	"context"

	"github.com/idilsaglam/todosync/internal/model"
)

// Operation names, also used as metric labels.
const (
	OpAdd    = "add"
	OpToggle = "toggle"
	OpDelete = "delete"
)

// Remote is the part of the API client the controller depends on.
type Remote interface {
	List(ctx context.Context) ([]model.Item, error)
	Create(ctx context.Context, it model.Item) (*model.Item, error)
	SetCompleted(ctx context.Context, id model.ID, completed bool) (*model.Item, error)
	Delete(ctx context.Context, id model.ID) error
}

// Mutation is one user change expressed against both copies of the list.
type Mutation interface {
	Op() string
	Target() model.ID
	// ApplyLocally returns the list as it looks with the change applied.
	ApplyLocally(items []model.Item) []model.Item
	// ApplyRemotely sends the change. It must not touch controller state.
	ApplyRemotely(ctx context.Context, r Remote) (*model.Item, error)
	// Reconcile folds the server's answer into the list.
	Reconcile(items []model.Item, remote *model.Item) []model.Item
}

// AddMutation appends Item. An empty Item.ID asks the server to assign one.
type AddMutation struct {
	Item model.Item
}

func (m AddMutation) Op() string       { return OpAdd }
func (m AddMutation) Target() model.ID { return m.Item.ID }

func (m AddMutation) ApplyLocally(items []model.Item) []model.Item {
	out, _ := model.Append(items, m.Item)
	return out
}

func (m AddMutation) ApplyRemotely(ctx context.Context, r Remote) (*model.Item, error) {
	return r.Create(ctx, m.Item)
}

func (m AddMutation) Reconcile(items []model.Item, remote *model.Item) []model.Item {
	if remote == nil {
		return model.Clone(items)
	}
	out, _ := model.Append(items, *remote)
	return out
}

// ToggleMutation sets Completed on ID. Completed is the flipped value of the
// item at the time the mutation was built.
type ToggleMutation struct {
	ID        model.ID
	Completed bool
}

func (m ToggleMutation) Op() string       { return OpToggle }
func (m ToggleMutation) Target() model.ID { return m.ID }

func (m ToggleMutation) ApplyLocally(items []model.Item) []model.Item {
	out := model.Clone(items)
	if i := model.Index(out, m.ID); i >= 0 {
		out[i].Completed = m.Completed
	}
	return out
}

func (m ToggleMutation) ApplyRemotely(ctx context.Context, r Remote) (*model.Item, error) {
	return r.SetCompleted(ctx, m.ID, m.Completed)
}

// Reconcile replaces the item with the server's copy, or applies the flag
// locally when the server answered without a body.
func (m ToggleMutation) Reconcile(items []model.Item, remote *model.Item) []model.Item {
	if remote == nil {
		return m.ApplyLocally(items)
	}
	return model.Replace(items, *remote)
}

// DeleteMutation removes ID.
type DeleteMutation struct {
	ID model.ID
}

func (m DeleteMutation) Op() string       { return OpDelete }
func (m DeleteMutation) Target() model.ID { return m.ID }

func (m DeleteMutation) ApplyLocally(items []model.Item) []model.Item {
	return model.Remove(items, m.ID)
}

func (m DeleteMutation) ApplyRemotely(ctx context.Context, r Remote) (*model.Item, error) {
	return nil, r.Delete(ctx, m.ID)
}

func (m DeleteMutation) Reconcile(items []model.Item, _ *model.Item) []model.Item {
	return model.Remove(items, m.ID)
}

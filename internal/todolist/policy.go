package todolist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/idilsaglam/todosync/internal/metrics"
	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/store"
)

// Mode names a sync discipline.
type Mode string

const (
	ModeOptimistic    Mode = "optimistic"
	ModeAuthoritative Mode = "authoritative"
)

// ErrUnknownMode is returned by PolicyFor.
var ErrUnknownMode = errors.New("unknown sync mode")

// LoadResult is what a policy decided the startup list is.
type LoadResult struct {
	Items  []model.Item
	Source string // metrics.SourceRemote, SourceMirror or SourceEmpty
	// RemoteErr and MirrorErr explain why a source was skipped.
	RemoteErr error
	MirrorErr error
}

// Policy decides how local state reacts at each step of a request.
type Policy interface {
	Mode() Mode
	// Mirrors reports whether the list is copied to the local store.
	Mirrors() bool
	// ConsumesResponse reports whether remote response bodies are read.
	ConsumesResponse() bool
	NewItem(text string, now time.Time) model.Item
	Load(ctx context.Context, r Remote, mirror store.Mirror) LoadResult
	Before(items []model.Item, m Mutation) []model.Item
	OnSuccess(items []model.Item, m Mutation, remote *model.Item) []model.Item
	OnFailure(items []model.Item, m Mutation, err error) []model.Item
}

// PolicyFor returns the policy for mode.
func PolicyFor(mode Mode) (Policy, error) {
	switch mode {
	case ModeOptimistic:
		return Optimistic{}, nil
	case ModeAuthoritative:
		return Authoritative{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

// Optimistic favors availability: the list changes before the network is
// consulted and remote outcomes never change it afterwards.
type Optimistic struct{}

func (Optimistic) Mode() Mode             { return ModeOptimistic }
func (Optimistic) Mirrors() bool          { return true }
func (Optimistic) ConsumesResponse() bool { return false }

func (Optimistic) NewItem(text string, now time.Time) model.Item {
	return model.Item{ID: model.NewClientID(now), Text: text}
}

// Load prefers the remote list and falls back to the mirror snapshot. The
// winning source replaces the list entirely.
func (Optimistic) Load(ctx context.Context, r Remote, mirror store.Mirror) LoadResult {
	items, err := r.List(ctx)
	if err == nil {
		return LoadResult{Items: items, Source: metrics.SourceRemote}
	}
	res := LoadResult{Items: []model.Item{}, Source: metrics.SourceEmpty, RemoteErr: err}
	if mirror == nil {
		return res
	}
	saved, merr := mirror.Load(ctx)
	switch {
	case merr == nil:
		res.Items, res.Source = saved, metrics.SourceMirror
	case !errors.Is(merr, store.ErrNoSnapshot):
		res.MirrorErr = merr
	}
	return res
}

func (Optimistic) Before(items []model.Item, m Mutation) []model.Item {
	return m.ApplyLocally(items)
}

func (Optimistic) OnSuccess(items []model.Item, _ Mutation, _ *model.Item) []model.Item {
	return items
}

func (Optimistic) OnFailure(items []model.Item, _ Mutation, _ error) []model.Item {
	return items
}

// Authoritative favors consistency: the list only ever shows what the server
// confirmed.
type Authoritative struct{}

func (Authoritative) Mode() Mode             { return ModeAuthoritative }
func (Authoritative) Mirrors() bool          { return false }
func (Authoritative) ConsumesResponse() bool { return true }

func (Authoritative) NewItem(text string, _ time.Time) model.Item {
	return model.Item{Text: text}
}

// Load uses the remote list or nothing.
func (Authoritative) Load(ctx context.Context, r Remote, _ store.Mirror) LoadResult {
	items, err := r.List(ctx)
	if err != nil {
		return LoadResult{Items: []model.Item{}, Source: metrics.SourceEmpty, RemoteErr: err}
	}
	return LoadResult{Items: items, Source: metrics.SourceRemote}
}

func (Authoritative) Before(items []model.Item, _ Mutation) []model.Item {
	return items
}

func (Authoritative) OnSuccess(items []model.Item, m Mutation, remote *model.Item) []model.Item {
	return m.Reconcile(items, remote)
}

func (Authoritative) OnFailure(items []model.Item, _ Mutation, _ error) []model.Item {
	return items
}

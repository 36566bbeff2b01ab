package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// EngineRegistry keeps one Engine per operator on the bound terminal and runs
// each call under that engine's lock, so commands of one operator execute one
// at a time.
type EngineRegistry struct {
	deps    EngineDeps
	binding *Binding

	mu      sync.Mutex
	engines map[uuid.UUID]*engineSlot
}

type engineSlot struct {
	mu     sync.Mutex
	engine *Engine
}

func NewEngineRegistry(deps EngineDeps, b *Binding) *EngineRegistry {
	return &EngineRegistry{deps: deps, binding: b, engines: make(map[uuid.UUID]*engineSlot)}
}

func (r *EngineRegistry) Binding() *Binding { return r.binding }

// With runs fn against the operator's engine, creating it on first use.
func (r *EngineRegistry) With(ctx context.Context, op *Operator, fn func(*Engine) error) error {
	r.mu.Lock()
	slot, ok := r.engines[op.ID]
	if !ok {
		slot = &engineSlot{}
		r.engines[op.ID] = slot
	}
	r.mu.Unlock()

	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.engine == nil {
		e, err := NewEngine(ctx, r.deps, r.binding, op)
		if err != nil {
			return err
		}
		slot.engine = e
	} else {
		slot.engine.SetOperator(op)
	}
	return fn(slot.engine)
}

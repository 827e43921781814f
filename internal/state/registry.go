// Package state tracks which Telegram message currently occupies each
// logical slot, so that later calls can replace or retract it.
//
// Slots are keyed "<chatID>:<topicID or 0>:<key>". Entries live until the
// caller replaces or deletes them; nothing expires on its own.
package state

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"
)

// Store persists the whole slot map. Save always receives a full snapshot.
type Store interface {
	LoadSlots(ctx context.Context) (map[string]int, error)
	SaveSlots(ctx context.Context, slots map[string]int) error
}

// Registry is the in-memory slot map plus write-through persistence.
// It is the only writer to its Store and is safe for concurrent use.
type Registry struct {
	store Store

	mu    sync.Mutex
	slots map[string]int
}

// Open loads the current snapshot from store.
func Open(ctx context.Context, store Store) (*Registry, error) {
	slots, err := store.LoadSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	if slots == nil {
		slots = map[string]int{}
	}
	return &Registry{store: store, slots: slots}, nil
}

// CompositeKey builds the storage key for a slot.
func CompositeKey(chatID int64, topicID int, key string) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(topicID) + ":" + key
}

func chatPrefix(chatID int64) string {
	return strconv.FormatInt(chatID, 10) + ":"
}

func (r *Registry) Get(chatID int64, topicID int, key string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.slots[CompositeKey(chatID, topicID, key)]
	return id, ok
}

// Set records messageID as the current occupant of the slot and persists.
func (r *Registry) Set(ctx context.Context, chatID int64, topicID int, key string, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[CompositeKey(chatID, topicID, key)] = messageID
	return r.saveLocked(ctx)
}

// Remove forgets the slot. Nothing is written when the slot was empty.
func (r *Registry) Remove(ctx context.Context, chatID int64, topicID int, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ck := CompositeKey(chatID, topicID, key)
	if _, ok := r.slots[ck]; !ok {
		return nil
	}
	delete(r.slots, ck)
	return r.saveLocked(ctx)
}

// AllForChat returns a copy of every slot in chatID, across all topics.
func (r *Registry) AllForChat(chatID int64) map[string]int {
	prefix := chatPrefix(chatID)
	out := map[string]int{}
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range r.slots {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out
}

// ClearForChat drops every slot in chatID. Nothing is written when none existed.
func (r *Registry) ClearForChat(ctx context.Context, chatID int64) error {
	prefix := chatPrefix(chatID)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for k := range r.slots {
		if strings.HasPrefix(k, prefix) {
			delete(r.slots, k)
			removed++
		}
	}
	if removed == 0 {
		return nil
	}
	return r.saveLocked(ctx)
}

// Len is the number of tracked slots.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// saveLocked hands the store a private copy so it never aliases live state.
func (r *Registry) saveLocked(ctx context.Context) error {
	if err := r.store.SaveSlots(ctx, maps.Clone(r.slots)); err != nil {
		return fmt.Errorf("save slots: %w", err)
	}
	return nil
}

// Package members holds the engine's read-only view of the community
// directory. Member records are owned by the identity layer; the engine only
// resolves identifiers to display names for leaderboards and poll analytics.
package members

import (
	"strings"
	"sync"
)

// Member is the directory entry for a single resident.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Directory is an in-process registry of members seen by the engine.
type Directory struct {
	mu      sync.RWMutex
	members map[string]Member
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{members: make(map[string]Member)}
}

// Register records or refreshes a member entry. Blank identifiers are ignored.
func (d *Directory) Register(id, name, role string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[id] = Member{ID: id, Name: strings.TrimSpace(name), Role: strings.TrimSpace(role)}
}

// Lookup returns the member entry for id.
func (d *Directory) Lookup(id string) (Member, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[id]
	return m, ok
}

// DisplayName resolves a member id to a display name, falling back to the id
// itself for members the directory has never seen.
func (d *Directory) DisplayName(id string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if m, ok := d.members[id]; ok && m.Name != "" {
		return m.Name
	}
	return id
}

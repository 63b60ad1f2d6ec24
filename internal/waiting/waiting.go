// Package waiting manages the pre-game roster. Slots always form a
// contiguous set {1..N}: the smallest free slot is handed out on join and
// the roster is renumbered on any departure.
package waiting

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	MaxUsernameLen = 20
	minUsernameLen = 3
	DefaultAvatar  = "avatarCat"
)

var allowedAvatars = map[string]bool{
	"avatarCat":   true,
	"avatarPanda": true,
	"avatarOwl":   true,
	"avatarDog":   true,
	"avatarEmoji": true,
	"avatarSnake": true,
}

func ValidAvatar(avatar string) bool { return allowedAvatars[avatar] }

type Entry struct {
	ClientID string
	Username string
	Avatar   string
	Slot     int
	JoinedAt time.Time
}

// RosterPlayer is the public shape of one seat. Connection ids never leave
// this package.
type RosterPlayer struct {
	Slot     int    `json:"slot"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type Room struct {
	entries []*Entry
}

func New() *Room {
	return &Room{}
}

func (r *Room) Len() int { return len(r.entries) }

// Get returns the entry for a connection, or nil.
func (r *Room) Get(clientID string) *Entry {
	for _, e := range r.entries {
		if e.ClientID == clientID {
			return e
		}
	}
	return nil
}

// Join seats a new connection at the smallest unused slot. If the connection
// is already seated it is a no-op and the existing entry is returned with
// joined=false. Missing or invalid fields fall back to defaults.
func (r *Room) Join(clientID, username, avatar string, now time.Time) (entry *Entry, joined bool) {
	if e := r.Get(clientID); e != nil {
		return e, false
	}

	slot := r.nextFreeSlot()
	name := sanitizeUsername(username)
	if name == "" {
		name = fmt.Sprintf("Player %d", slot)
	}
	if !ValidAvatar(avatar) {
		avatar = DefaultAvatar
	}

	e := &Entry{
		ClientID: clientID,
		Username: name,
		Avatar:   avatar,
		Slot:     slot,
		JoinedAt: now,
	}
	r.entries = append(r.entries, e)
	return e, true
}

// UpdateProfile mutates only supplied, valid fields of a seated entry.
// Returns nil if the connection is not seated.
func (r *Room) UpdateProfile(clientID, username, avatar string) *Entry {
	e := r.Get(clientID)
	if e == nil {
		return nil
	}
	if name := sanitizeUsername(username); name != "" {
		e.Username = name
	}
	if ValidAvatar(avatar) {
		e.Avatar = avatar
	}
	return e
}

// Leave removes a connection's entry and renumbers the remaining seats to
// 1..N in their previous slot order. It returns the removed entry and every
// entry whose slot changed, so each can be notified individually.
func (r *Room) Leave(clientID string) (removed *Entry, reassigned []*Entry) {
	idx := -1
	for i, e := range r.entries {
		if e.ClientID == clientID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil
	}
	removed = r.entries[idx]
	r.entries = append(r.entries[:idx], r.entries[idx+1:]...)

	sort.Slice(r.entries, func(i, j int) bool { return r.entries[i].Slot < r.entries[j].Slot })
	for i, e := range r.entries {
		if e.Slot != i+1 {
			e.Slot = i + 1
			reassigned = append(reassigned, e)
		}
	}
	return removed, reassigned
}

// Roster returns the broadcast payload: seats ordered by slot.
func (r *Room) Roster() []RosterPlayer {
	sorted := make([]*Entry, len(r.entries))
	copy(sorted, r.entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Slot < sorted[j].Slot })

	roster := make([]RosterPlayer, 0, len(sorted))
	for _, e := range sorted {
		roster = append(roster, RosterPlayer{Slot: e.Slot, Username: e.Username, Avatar: e.Avatar})
	}
	return roster
}

// Snapshot returns the seated entries ordered by slot.
func (r *Room) Snapshot() []*Entry {
	sorted := make([]*Entry, len(r.entries))
	copy(sorted, r.entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Slot < sorted[j].Slot })
	return sorted
}

// Seed replaces the roster wholesale, preserving the given slots. Used when
// a manually ended session returns its players to the lobby.
func (r *Room) Seed(entries []*Entry) {
	r.entries = entries
}

// Clear empties the room.
func (r *Room) Clear() {
	r.entries = nil
}

func (r *Room) nextFreeSlot() int {
	used := make(map[int]bool, len(r.entries))
	for _, e := range r.entries {
		used[e.Slot] = true
	}
	slot := 1
	for used[slot] {
		slot++
	}
	return slot
}

// sanitizeUsername trims, enforces the 3-20 char window and a conservative
// charset. Returns "" when the name is unusable so the caller can default it.
func sanitizeUsername(username string) string {
	name := strings.TrimSpace(username)
	if len(name) > MaxUsernameLen {
		name = name[:MaxUsernameLen]
	}
	if len(name) < minUsernameLen {
		return ""
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == ' ', c == '.', c == '_', c == '-':
		default:
			return ""
		}
	}
	return name
}

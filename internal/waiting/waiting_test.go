package waiting

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin_AssignsSmallestFreeSlot(t *testing.T) {
	r := New()
	now := time.Now()

	a, joined := r.Join("a", "alice", "avatarPanda", now)
	require.True(t, joined)
	assert.Equal(t, 1, a.Slot)
	assert.Equal(t, "alice", a.Username)
	assert.Equal(t, "avatarPanda", a.Avatar)

	b, _ := r.Join("b", "bob", "avatarOwl", now)
	assert.Equal(t, 2, b.Slot)

	// Rejoining the same connection is a no-op.
	again, joined := r.Join("a", "someone else", "avatarDog", now)
	assert.False(t, joined)
	assert.Equal(t, a, again)
	assert.Equal(t, 2, r.Len())
}

func TestJoin_DefaultsForMissingOrInvalidFields(t *testing.T) {
	r := New()
	now := time.Now()

	cases := []struct {
		username     string
		avatar       string
		wantUsername string
		wantAvatar   string
	}{
		{"", "", "Player 1", DefaultAvatar},
		{"ab", "avatarShark", "Player 2", DefaultAvatar},
		{"<script>", "avatarOwl", "Player 3", "avatarOwl"},
		{"  padded  ", "avatarDog", "padded", "avatarDog"},
		{"a-very-long-username-indeed", "avatarCat", "a-very-long-username", "avatarCat"},
	}
	for i, tc := range cases {
		e, _ := r.Join(fmt.Sprintf("c%d", i), tc.username, tc.avatar, now)
		assert.Equal(t, tc.wantUsername, e.Username, "case %d", i)
		assert.Equal(t, tc.wantAvatar, e.Avatar, "case %d", i)
	}
}

func TestLeave_RenumbersToContiguousSlots(t *testing.T) {
	r := New()
	now := time.Now()
	for i := 1; i <= 4; i++ {
		r.Join(fmt.Sprintf("c%d", i), fmt.Sprintf("player%d", i), "", now)
	}

	removed, reassigned := r.Leave("c2")
	require.NotNil(t, removed)
	assert.Equal(t, 2, removed.Slot)

	// c3 and c4 shift down, c1 keeps its seat.
	require.Len(t, reassigned, 2)
	assert.Equal(t, "c3", reassigned[0].ClientID)
	assert.Equal(t, 2, reassigned[0].Slot)
	assert.Equal(t, "c4", reassigned[1].ClientID)
	assert.Equal(t, 3, reassigned[1].Slot)

	assertContiguous(t, r)
}

func TestLeave_UnknownConnectionIsNoop(t *testing.T) {
	r := New()
	r.Join("a", "alice", "", time.Now())

	removed, reassigned := r.Leave("ghost")
	assert.Nil(t, removed)
	assert.Empty(t, reassigned)
	assert.Equal(t, 1, r.Len())
}

func TestChurn_SlotsStayContiguous(t *testing.T) {
	r := New()
	now := time.Now()

	ops := []struct {
		join bool
		id   string
	}{
		{true, "a"}, {true, "b"}, {true, "c"},
		{false, "a"},
		{true, "d"}, {true, "e"},
		{false, "c"}, {false, "b"},
		{true, "f"},
	}
	for _, op := range ops {
		if op.join {
			r.Join(op.id, "", "", now)
		} else {
			r.Leave(op.id)
		}
		assertContiguous(t, r)
	}
	assert.Equal(t, 3, r.Len())
}

func TestUpdateProfile(t *testing.T) {
	r := New()
	r.Join("a", "alice", "avatarCat", time.Now())

	e := r.UpdateProfile("a", "alicia", "avatarSnake")
	require.NotNil(t, e)
	assert.Equal(t, "alicia", e.Username)
	assert.Equal(t, "avatarSnake", e.Avatar)

	// Invalid fields leave the current values alone.
	e = r.UpdateProfile("a", "x", "notAnAvatar")
	assert.Equal(t, "alicia", e.Username)
	assert.Equal(t, "avatarSnake", e.Avatar)

	assert.Nil(t, r.UpdateProfile("ghost", "name", "avatarOwl"))
}

func TestRoster_OrderedBySlot(t *testing.T) {
	r := New()
	now := time.Now()
	r.Join("a", "alice", "", now)
	r.Join("b", "bob", "", now)
	r.Join("c", "carol", "", now)
	r.Leave("a")
	r.Join("d", "dave", "", now)

	roster := r.Roster()
	require.Len(t, roster, 3)
	for i, p := range roster {
		assert.Equal(t, i+1, p.Slot)
	}
	assert.Equal(t, "bob", roster[0].Username)
	assert.Equal(t, "carol", roster[1].Username)
	assert.Equal(t, "dave", roster[2].Username)
}

func TestSeed_PreservesGivenSlots(t *testing.T) {
	r := New()
	r.Join("stale", "stale", "", time.Now())

	r.Seed([]*Entry{
		{ClientID: "x", Username: "xena", Slot: 2},
		{ClientID: "y", Username: "yuri", Slot: 1},
	})
	roster := r.Roster()
	require.Len(t, roster, 2)
	assert.Equal(t, "yuri", roster[0].Username)
	assert.Equal(t, "xena", roster[1].Username)
}

func assertContiguous(t *testing.T, r *Room) {
	t.Helper()
	seen := make(map[int]bool)
	for _, e := range r.Snapshot() {
		require.False(t, seen[e.Slot], "duplicate slot %d", e.Slot)
		seen[e.Slot] = true
	}
	for i := 1; i <= r.Len(); i++ {
		require.True(t, seen[i], "missing slot %d with %d seated", i, r.Len())
	}
}

package game

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoom() *Room {
	r := newRoom("room-1", RoomParams{Name: "Den", MinPlayers: 3, MaxPlayers: 6}, "alice", "🙂", time.Unix(0, 0))
	r.addPlayer("bob", "🙃", false)
	r.addPlayer("carol", "😶", false)
	return r
}

func TestNewRoomClampsBounds(t *testing.T) {
	tests := []struct {
		name            string
		params          RoomParams
		wantMin, wantMax int
	}{
		{"defaults applied", RoomParams{Name: "a"}, defaultMinPlayers, defaultMaxPlayers},
		{"floor enforced", RoomParams{Name: "a", MinPlayers: 1, MaxPlayers: 6}, minPlayersFloor, 6},
		{"ceiling enforced", RoomParams{Name: "a", MinPlayers: 4, MaxPlayers: 99}, 4, maxPlayersCeiling},
		{"max raised to min", RoomParams{Name: "a", MinPlayers: 8, MaxPlayers: 4}, 8, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRoom("id", tt.params, "alice", "", time.Unix(0, 0))
			assert.Equal(t, tt.wantMin, r.MinPlayers)
			assert.Equal(t, tt.wantMax, r.MaxPlayers)
			require.Len(t, r.Players, 1)
			assert.True(t, r.Players[0].IsCreator)
		})
	}
}

func TestRemovePlayerHandsCreatorToEarliestRemaining(t *testing.T) {
	r := testRoom()

	removed, creatorChanged := r.removePlayer("alice")
	assert.True(t, removed)
	assert.True(t, creatorChanged)
	assert.Equal(t, "bob", r.Creator)
	assert.True(t, r.player("bob").IsCreator)

	removed, creatorChanged = r.removePlayer("carol")
	assert.True(t, removed)
	assert.False(t, creatorChanged)

	removed, _ = r.removePlayer("ghost")
	assert.False(t, removed)
}

func TestViewHidesForeignRolesWhilePlaying(t *testing.T) {
	r := testRoom()
	r.Status = RoomPlaying
	r.player("alice").Role = RoleDon
	r.player("bob").Role = RoleCitizen
	r.player("carol").Role = RoleCitizen

	v := r.view("bob")
	for _, pv := range v.Players {
		if pv.Nickname == "bob" {
			require.NotNil(t, pv.Role)
			assert.Equal(t, RoleCitizen, *pv.Role)
		} else {
			assert.Nil(t, pv.Role, "role of %s must be hidden from bob", pv.Nickname)
		}
	}
}

func TestViewRevealsAllRolesWhenFinished(t *testing.T) {
	r := testRoom()
	r.Status = RoomFinished
	r.player("alice").Role = RoleDon
	r.player("bob").Role = RoleCitizen
	r.player("carol").Role = RoleCitizen

	v := r.view("bob")
	for _, pv := range v.Players {
		require.NotNil(t, pv.Role, "finished rooms reveal %s's role", pv.Nickname)
	}
}

func TestViewBeforeRolesDealt(t *testing.T) {
	r := testRoom()

	v := r.view("alice")
	assert.Nil(t, v.Game)
	for _, pv := range v.Players {
		assert.Nil(t, pv.Role)
	}
	assert.NotNil(t, v.Messages, "messages marshal as an empty array, not null")
}

func TestChatLogKeepsLastFifty(t *testing.T) {
	r := testRoom()
	for i := 0; i < maxChatLog+20; i++ {
		r.appendMessage(ChatMessage{Sender: "alice", Message: fmt.Sprintf("line %d", i)})
	}

	require.Len(t, r.Messages, maxChatLog)
	assert.Equal(t, "line 20", r.Messages[0].Message)
	assert.Equal(t, fmt.Sprintf("line %d", maxChatLog+19), r.Messages[maxChatLog-1].Message)
}

func TestSummaryOmitsSecrets(t *testing.T) {
	r := newRoom("room-2", RoomParams{Name: "Vault", Password: "hush"}, "alice", "", time.Unix(0, 0))

	summary := r.summary()
	assert.Equal(t, "Vault", summary.Name)
	assert.True(t, summary.HasPassword)
	assert.Equal(t, 1, summary.Players)
	assert.Equal(t, RoomWaiting, summary.Status)
}

func TestHumanCountExcludesBots(t *testing.T) {
	r := testRoom()
	r.addPlayer("Bot_1", "🤖", true)

	assert.Equal(t, 3, r.humanCount())
	assert.Len(t, r.Players, 4)
}

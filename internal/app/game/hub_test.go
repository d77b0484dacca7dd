package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mafiagame/internal/pkg/errs"
)

type HubSuite struct {
	gameSuite
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubSuite))
}

// --- connection and auth ---

func (s *HubSuite) TestConnectGreetsSession() {
	sess := NewSession(s.hub, nil, "test")
	s.hub.Connect(sess)
	s.sync()

	events := s.drain(sess)
	s.requireEvent(events, evtConnected)
}

func (s *HubSuite) TestPing() {
	sess := s.connect()
	s.send(sess, map[string]any{"type": "ping"})

	events := s.drain(sess)
	s.requireEvent(events, evtPong)
}

func (s *HubSuite) TestInvalidJSONReportsError() {
	sess := s.connect()
	s.hub.HandleInbound(sess, []byte("{not json"))
	s.sync()

	s.Equal(errs.ErrInvalidJSONFormat, errorCode(s.drain(sess)))
}

func (s *HubSuite) TestUnknownMessageTypeReportsError() {
	sess := s.connect()
	s.send(sess, map[string]any{"type": "teleport"})

	s.Equal(errs.ErrUnknownMessageType, errorCode(s.drain(sess)))
}

func (s *HubSuite) TestRegisterAndLogin() {
	sess := s.connect()
	s.send(sess, map[string]any{"type": "register", "nickname": "alice", "password": "secret99", "avatar": "🐱"})

	s.Require().Eventually(func() bool {
		return hasEvent(s.drain(sess), evtRegisterSuccess)
	}, 2*time.Second, 5*time.Millisecond)

	s.send(sess, map[string]any{"type": "login", "nickname": "alice", "password": "secret99"})

	var success map[string]any
	s.Require().Eventually(func() bool {
		events := s.drain(sess)
		for _, event := range events {
			if event["type"] == evtLoginSuccess {
				success = event
			}
		}
		return success != nil
	}, 2*time.Second, 5*time.Millisecond)

	user := success["user"].(map[string]any)
	s.Equal("alice", user["nickname"])
	s.Equal("🐱", user["avatar"])
	s.EqualValues(100, user["coins"])
	s.NotEmpty(success["token"])
}

func (s *HubSuite) TestRegisterRejectsShortNickname() {
	sess := s.connect()
	s.send(sess, map[string]any{"type": "register", "nickname": "ab", "password": "secret99"})

	s.Equal(errs.ErrInvalidNickname, errorCode(s.drain(sess)))
}

func (s *HubSuite) TestRegisterRejectsShortPassword() {
	sess := s.connect()
	s.send(sess, map[string]any{"type": "register", "nickname": "alice", "password": "ab"})

	s.Equal(errs.ErrInvalidPassword, errorCode(s.drain(sess)))
}

func (s *HubSuite) TestRegisterRejectsDuplicateNickname() {
	_, err := s.store.CreateUser(context.Background(), "alice", "password123", "")
	s.Require().NoError(err)

	sess := s.connect()
	s.send(sess, map[string]any{"type": "register", "nickname": "alice", "password": "secret99"})

	s.Require().Eventually(func() bool {
		return errorCode(s.drain(sess)) == errs.ErrUserAlreadyExists
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *HubSuite) TestLoginRejectsWrongPassword() {
	_, err := s.store.CreateUser(context.Background(), "alice", "password123", "")
	s.Require().NoError(err)

	sess := s.connect()
	s.send(sess, map[string]any{"type": "login", "nickname": "alice", "password": "wrong"})

	s.Require().Eventually(func() bool {
		return errorCode(s.drain(sess)) == errs.ErrInvalidCredentials
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *HubSuite) TestOperationsRequireAuthentication() {
	sess := s.connect()
	s.send(sess, map[string]any{"type": "getRooms"})

	s.Equal(errs.ErrNotAuthenticated, errorCode(s.drain(sess)))
}

// --- single active session per identity ---

func (s *HubSuite) TestSecondLoginDisplacesFirstSession() {
	first := s.login("bob")
	second := s.login("bob")

	firstEvents := s.drain(first)
	kicked := s.requireEvent(firstEvents, evtKicked)
	s.Contains(kicked["reason"], "another device")

	s.run(func() {
		s.Same(second, s.hub.byNickname["bob"])
		_, stillRegistered := s.hub.registered[first]
		s.False(stillRegistered)
	})
}

func (s *HubSuite) TestDisplacementAppliesLeaveSemantics() {
	alice := s.login("alice")
	bob := s.login("bob")

	roomID := s.createRoom(bob, map[string]any{"name": "Den", "minPlayers": 3, "maxPlayers": 6})
	s.joinRoom(alice, roomID)

	// bob created the room, then signs in from a second device
	s.login("bob")

	s.withRoom(roomID, func(r *Room) {
		s.False(r.hasPlayer("bob"))
		s.Equal("alice", r.Creator)
		s.True(r.player("alice").IsCreator)
	})

	// the remaining member saw bob leave
	aliceEvents := s.drain(alice)
	s.True(hasEvent(aliceEvents, evtRoomUpdated))
}

func (s *HubSuite) TestDisplacedSessionContinuesFromLobby() {
	s.login("bob")
	second := s.login("bob")

	roomID := s.createRoom(second, map[string]any{"name": "Fresh", "minPlayers": 3, "maxPlayers": 6})
	s.withRoom(roomID, func(r *Room) {
		s.Equal("bob", r.Creator)
	})
}

func (s *HubSuite) TestReloginAsDifferentAccountReleasesOldIdentity() {
	bob := s.login("bob")
	roomID := s.createRoom(bob, map[string]any{"name": "Den", "minPlayers": 3, "maxPlayers": 6})

	_, err := s.store.CreateUser(context.Background(), "alice", "password123", "")
	s.Require().NoError(err)
	s.send(bob, map[string]any{"type": "login", "nickname": "alice", "password": "password123"})

	s.Require().Eventually(func() bool {
		var bound bool
		s.run(func() { bound = s.hub.byNickname["alice"] == bob })
		return bound
	}, 2*time.Second, 5*time.Millisecond)

	s.run(func() {
		s.Nil(s.hub.byNickname["bob"], "the index must not keep routing bob to the rebound session")
		s.Equal("alice", bob.nickname())
		s.Equal("", bob.roomID)
		s.Nil(s.hub.rooms[roomID], "bob's seat is released, emptying the room")
	})

	// a fresh login under the vacated nickname must not displace alice
	s.drain(bob)
	fresh := s.login("bob")
	s.run(func() {
		s.Same(fresh, s.hub.byNickname["bob"])
		s.Same(bob, s.hub.byNickname["alice"])
	})
	s.False(hasEvent(s.drain(bob), evtKicked))
}

func (s *HubSuite) TestKickDeliversCloseCodeThroughSendQueue() {
	first := s.login("bob")
	s.login("bob")

	events := s.drain(first)
	s.requireEvent(events, evtKicked)

	_, open := <-first.send
	s.False(open, "the displaced session's queue closes after the kicked event")
	s.Equal(WsCloseCodeSessionKicked, first.closeCode)
	s.Contains(first.closeReason, "another device")
}

// --- rooms ---

func (s *HubSuite) TestCreateRoomClampsBounds() {
	alice := s.login("alice")
	roomID := s.createRoom(alice, map[string]any{"name": "Tiny", "minPlayers": 1, "maxPlayers": 99})

	s.withRoom(roomID, func(r *Room) {
		s.Equal(minPlayersFloor, r.MinPlayers)
		s.Equal(maxPlayersCeiling, r.MaxPlayers)
	})
}

func (s *HubSuite) TestCreateRoomRejectsEmptyName() {
	alice := s.login("alice")
	s.send(alice, map[string]any{"type": "createRoom", "room": map[string]any{"name": "   "}})

	s.Equal(errs.ErrInvalidParams, errorCode(s.drain(alice)))
}

func (s *HubSuite) TestCreateRoomWhileInRoomFails() {
	alice := s.login("alice")
	s.createRoom(alice, map[string]any{"name": "First", "minPlayers": 3, "maxPlayers": 6})

	s.send(alice, map[string]any{"type": "createRoom", "room": map[string]any{"name": "Second"}})
	s.Equal(errs.ErrAlreadyInRoom, errorCode(s.drain(alice)))
}

func (s *HubSuite) TestLobbySeesNewRooms() {
	alice := s.login("alice")
	bob := s.login("bob")
	s.drain(bob)

	s.createRoom(alice, map[string]any{"name": "Mansion", "minPlayers": 4, "maxPlayers": 8, "password": "hush"})

	bobEvents := s.drain(bob)
	roomsEv := s.requireEvent(bobEvents, evtRooms)
	listed := roomsEv["rooms"].([]any)
	s.Require().Len(listed, 1)

	summary := listed[0].(map[string]any)
	s.Equal("Mansion", summary["name"])
	s.Equal(true, summary["hasPassword"])
	s.NotContains(summary, "password")
}

func (s *HubSuite) TestJoinRoomBroadcastsToMembers() {
	alice := s.login("alice")
	bob := s.login("bob")

	roomID := s.createRoom(alice, map[string]any{"name": "Den", "minPlayers": 3, "maxPlayers": 6})
	s.drain(alice)
	s.joinRoom(bob, roomID)

	aliceEvents := s.drain(alice)
	updated := s.requireEvent(aliceEvents, evtRoomUpdated)
	room := updated["room"].(map[string]any)
	s.Len(room["players"].([]any), 2)

	chat := s.requireEvent(aliceEvents, evtChatMessage)
	s.Equal("System", chat["sender"])
}

func (s *HubSuite) TestJoinRoomChecksPassword() {
	alice := s.login("alice")
	bob := s.login("bob")

	roomID := s.createRoom(alice, map[string]any{"name": "Vault", "minPlayers": 3, "maxPlayers": 6, "password": "hush"})

	s.send(bob, map[string]any{"type": "joinRoom", "roomId": roomID, "password": "nope"})
	s.Equal(errs.ErrWrongPassword, errorCode(s.drain(bob)))

	s.send(bob, map[string]any{"type": "joinRoom", "roomId": roomID, "password": "hush"})
	s.requireEvent(s.drain(bob), evtRoomJoined)
}

func (s *HubSuite) TestJoinRoomRejectsWhenFull() {
	alice := s.login("alice")
	bob := s.login("bob")
	carol := s.login("carol")
	dave := s.login("dave")

	roomID := s.createRoom(alice, map[string]any{"name": "Small", "minPlayers": 3, "maxPlayers": 3})
	s.joinRoom(bob, roomID)
	s.joinRoom(carol, roomID)

	s.send(dave, map[string]any{"type": "joinRoom", "roomId": roomID})
	s.Equal(errs.ErrRoomFull, errorCode(s.drain(dave)))
}

func (s *HubSuite) TestJoinUnknownRoomFails() {
	alice := s.login("alice")
	s.send(alice, map[string]any{"type": "joinRoom", "roomId": "missing"})

	s.Equal(errs.ErrRoomNotFound, errorCode(s.drain(alice)))
}

func (s *HubSuite) TestLeaveRoomHandsCreatorToEarliestMember() {
	alice := s.login("alice")
	bob := s.login("bob")
	carol := s.login("carol")

	roomID := s.createRoom(alice, map[string]any{"name": "Den", "minPlayers": 3, "maxPlayers": 6})
	s.joinRoom(bob, roomID)
	s.joinRoom(carol, roomID)

	s.send(alice, map[string]any{"type": "leaveRoom"})

	s.withRoom(roomID, func(r *Room) {
		s.Equal("bob", r.Creator)
		s.True(r.player("bob").IsCreator)
		s.False(r.hasPlayer("alice"))
	})

	// the leaver is back in the lobby and gets the room list
	s.requireEvent(s.drain(alice), evtRooms)
}

func (s *HubSuite) TestLastHumanLeavingDeletesRoom() {
	alice := s.login("alice")
	roomID := s.createRoom(alice, map[string]any{"name": "Ghost", "minPlayers": 3, "maxPlayers": 6})

	s.send(alice, map[string]any{"type": "leaveRoom"})

	s.run(func() {
		s.Nil(s.hub.rooms[roomID])
	})
}

func (s *HubSuite) TestDisconnectFromWaitingRoomReleasesSeat() {
	alice := s.login("alice")
	bob := s.login("bob")

	roomID := s.createRoom(alice, map[string]any{"name": "Den", "minPlayers": 3, "maxPlayers": 6})
	s.joinRoom(bob, roomID)

	s.hub.Disconnect(bob)
	s.sync()

	s.withRoom(roomID, func(r *Room) {
		s.False(r.hasPlayer("bob"))
	})
}

// --- reconnect during a game ---

func (s *HubSuite) TestReconnectResumesSingleMembership() {
	alice := s.login("alice")
	bob := s.login("bob")
	carol := s.login("carol")

	roomID := s.createRoom(alice, map[string]any{"name": "Den", "minPlayers": 3, "maxPlayers": 6})
	s.joinRoom(bob, roomID)
	s.joinRoom(carol, roomID)

	s.queueIdentityShuffle(3)
	s.send(alice, map[string]any{"type": "startGame"})
	s.withRoom(roomID, func(r *Room) {
		s.Equal(RoomPlaying, r.Status)
	})

	// carol's connection drops mid-game
	s.hub.Disconnect(carol)
	s.sync()

	s.withRoom(roomID, func(r *Room) {
		s.True(r.hasPlayer("carol"), "membership survives a transport drop")
	})

	carol2 := s.login("carol")

	// a plain join is refused; the seat is still carol's
	s.send(carol2, map[string]any{"type": "joinRoom", "roomId": roomID})
	s.Equal(errs.ErrAlreadyMember, errorCode(s.drain(carol2)))

	s.send(carol2, map[string]any{"type": "rejoinRoom", "roomId": roomID})
	events := s.drain(carol2)
	s.requireEvent(events, evtRoomJoined)
	s.requireEvent(events, evtRoleAssigned)

	s.withRoom(roomID, func(r *Room) {
		count := 0
		for _, p := range r.Players {
			if p.Nickname == "carol" {
				count++
			}
		}
		s.Equal(1, count)
	})
}

func (s *HubSuite) TestRejoinRequiresExistingMembership() {
	alice := s.login("alice")
	bob := s.login("bob")
	roomID := s.createRoom(alice, map[string]any{"name": "Den", "minPlayers": 3, "maxPlayers": 6})

	s.send(bob, map[string]any{"type": "rejoinRoom", "roomId": roomID})
	s.Equal(errs.ErrNotRoomMember, errorCode(s.drain(bob)))
}

// --- chat ---

func (s *HubSuite) TestChatBroadcastAndPersistence() {
	alice := s.login("alice")
	bob := s.login("bob")

	roomID := s.createRoom(alice, map[string]any{"name": "Den", "minPlayers": 3, "maxPlayers": 6})
	s.joinRoom(bob, roomID)
	s.drain(alice)

	s.send(bob, map[string]any{"type": "chatMessage", "message": "hello there"})

	chat := s.requireEvent(s.drain(alice), evtChatMessage)
	s.Equal("bob", chat["sender"])
	s.Equal("hello there", chat["message"])

	s.Require().Eventually(func() bool {
		for _, rec := range s.store.Messages() {
			if rec.Sender == "bob" && rec.Message == "hello there" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *HubSuite) TestChatRejectsOverlongMessage() {
	alice := s.login("alice")
	s.createRoom(alice, map[string]any{"name": "Den", "minPlayers": 3, "maxPlayers": 6})

	long := make([]byte, maxChatMessageLen+1)
	for i := range long {
		long[i] = 'a'
	}
	s.send(alice, map[string]any{"type": "chatMessage", "message": string(long)})

	s.Equal(errs.ErrMessageTooLong, errorCode(s.drain(alice)))
}

func (s *HubSuite) TestChatOutsideRoomFails() {
	alice := s.login("alice")
	s.send(alice, map[string]any{"type": "chatMessage", "message": "anyone?"})

	s.Equal(errs.ErrNotInRoom, errorCode(s.drain(alice)))
}

// --- profile and effects ---

func (s *HubSuite) TestUpdateAvatarPropagatesToRoom() {
	alice := s.login("alice")
	roomID := s.createRoom(alice, map[string]any{"name": "Den", "minPlayers": 3, "maxPlayers": 6})

	s.send(alice, map[string]any{"type": "updateAvatar", "avatar": "🦊"})

	events := s.drain(alice)
	updated := s.requireEvent(events, evtAvatarUpdated)
	s.Equal("🦊", updated["avatar"])

	s.withRoom(roomID, func(r *Room) {
		s.Equal("🦊", r.player("alice").Avatar)
	})
}

func (s *HubSuite) TestBuyEffect() {
	alice := s.login("alice")

	s.send(alice, map[string]any{"type": "buyEffect", "effect": "glow"})

	bought := s.requireEvent(s.drain(alice), evtEffectBought)
	s.Equal("glow", bought["effect"])
	s.EqualValues(70, bought["coins"])

	s.Require().Eventually(func() bool {
		u, err := s.store.GetUser(context.Background(), "alice")
		return err == nil && u.Coins == 70 && len(u.NicknameEffects) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *HubSuite) TestBuyEffectRejectsDuplicate() {
	alice := s.login("alice")

	s.send(alice, map[string]any{"type": "buyEffect", "effect": "fade"})
	s.drain(alice)
	s.send(alice, map[string]any{"type": "buyEffect", "effect": "fade"})

	s.Equal(errs.ErrEffectOwned, errorCode(s.drain(alice)))
}

func (s *HubSuite) TestBuyEffectRejectsInsufficientCoins() {
	alice := s.login("alice")

	// rainbow(50) + glow(30) leaves 20, not enough for shake(25)
	s.send(alice, map[string]any{"type": "buyEffect", "effect": "rainbow"})
	s.send(alice, map[string]any{"type": "buyEffect", "effect": "glow"})
	s.drain(alice)

	s.send(alice, map[string]any{"type": "buyEffect", "effect": "shake"})
	s.Equal(errs.ErrNotEnoughCoins, errorCode(s.drain(alice)))
}

func (s *HubSuite) TestBuyEffectRejectsUnknownEffect() {
	alice := s.login("alice")
	s.send(alice, map[string]any{"type": "buyEffect", "effect": "sparkle"})

	s.Equal(errs.ErrUnknownEffect, errorCode(s.drain(alice)))
}

// --- admin surface ---

func (s *HubSuite) TestAdminActionsRequireAdminFlag() {
	alice := s.login("alice")
	s.send(alice, map[string]any{"type": "adminAction", "action": "giveCoins", "target": "bob", "amount": 10})

	s.Equal(errs.ErrNotAdmin, errorCode(s.drain(alice)))
}

func (s *HubSuite) TestConfiguredAdminIsPromotedOnLogin() {
	admin := s.loginAdmin()
	s.run(func() {
		s.True(admin.user.IsAdmin)
	})
}

func (s *HubSuite) TestAdminGiveCoins() {
	admin := s.loginAdmin()
	bob := s.login("bob")

	s.send(admin, map[string]any{"type": "adminAction", "action": "giveCoins", "target": "bob", "amount": 40})

	s.Require().Eventually(func() bool {
		return hasEvent(s.drain(admin), evtAdminSuccess)
	}, 2*time.Second, 5*time.Millisecond)

	s.run(func() {
		s.Equal(140, bob.user.Coins)
	})
	s.Require().Eventually(func() bool {
		u, err := s.store.GetUser(context.Background(), "bob")
		return err == nil && u.Coins == 140
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *HubSuite) TestAdminGiveAndRemoveEffect() {
	admin := s.loginAdmin()
	s.login("bob")

	s.send(admin, map[string]any{"type": "adminAction", "action": "giveEffect", "target": "bob", "effect": "rainbow"})
	s.Require().Eventually(func() bool {
		u, err := s.store.GetUser(context.Background(), "bob")
		return err == nil && len(u.NicknameEffects) == 1
	}, 2*time.Second, 5*time.Millisecond)

	s.send(admin, map[string]any{"type": "adminAction", "action": "removeEffect", "target": "bob", "effect": "rainbow"})
	s.Require().Eventually(func() bool {
		u, err := s.store.GetUser(context.Background(), "bob")
		return err == nil && len(u.NicknameEffects) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *HubSuite) TestAddAndRemoveBot() {
	admin := s.loginAdmin()
	roomID := s.createRoom(admin, map[string]any{"name": "Lab", "minPlayers": 3, "maxPlayers": 6})

	s.send(admin, map[string]any{"type": "addBot", "botName": "Rusty"})

	added := s.requireEvent(s.drain(admin), evtBotAdded)
	s.Equal("Rusty", added["botName"])

	s.withRoom(roomID, func(r *Room) {
		p := r.player("Rusty")
		s.Require().NotNil(p)
		s.True(p.IsBot)
	})

	s.send(admin, map[string]any{"type": "removeBot", "botName": "Rusty"})
	s.withRoom(roomID, func(r *Room) {
		s.False(r.hasPlayer("Rusty"))
	})
}

func (s *HubSuite) TestRemoveBotRejectsHumans() {
	admin := s.loginAdmin()
	bob := s.login("bob")

	roomID := s.createRoom(admin, map[string]any{"name": "Lab", "minPlayers": 3, "maxPlayers": 6})
	s.joinRoom(bob, roomID)

	s.send(admin, map[string]any{"type": "removeBot", "botName": "bob"})
	s.Equal(errs.ErrBotNotFound, errorCode(s.drain(admin)))
}

func (s *HubSuite) TestRoomWithOnlyBotsIsDeleted() {
	admin := s.loginAdmin()
	roomID := s.createRoom(admin, map[string]any{"name": "Lab", "minPlayers": 3, "maxPlayers": 6})

	s.send(admin, map[string]any{"type": "addBot"})
	s.send(admin, map[string]any{"type": "leaveRoom"})

	s.run(func() {
		s.Nil(s.hub.rooms[roomID])
	})
}

func (s *HubSuite) TestAnnouncementReachesAllAuthenticatedSessions() {
	admin := s.loginAdmin()
	bob := s.login("bob")
	guest := s.connect()

	s.send(admin, map[string]any{"type": "sendAnnouncement", "text": "Maintenance at midnight"})

	note := s.requireEvent(s.drain(bob), evtAnnouncement)
	s.Equal("Maintenance at midnight", note["message"])
	s.False(hasEvent(s.drain(guest), evtAnnouncement))
}

func (s *HubSuite) TestGetLogsIsAdminOnly() {
	bob := s.login("bob")
	s.send(bob, map[string]any{"type": "getLogs"})
	s.Equal(errs.ErrNotAdmin, errorCode(s.drain(bob)))

	admin := s.loginAdmin()
	s.send(admin, map[string]any{"type": "getLogs"})

	logsEv := s.requireEvent(s.drain(admin), evtLogs)
	s.NotEmpty(logsEv["logs"])
}

func (s *HubSuite) TestStats() {
	alice := s.login("alice")
	s.createRoom(alice, map[string]any{"name": "Den", "minPlayers": 3, "maxPlayers": 6})

	s.send(alice, map[string]any{"type": "getStats"})

	var statsEv map[string]any
	s.Require().Eventually(func() bool {
		events := s.drain(alice)
		for _, event := range events {
			if event["type"] == evtStats {
				statsEv = event
			}
		}
		return statsEv != nil
	}, 2*time.Second, 5*time.Millisecond)

	stats := statsEv["stats"].(map[string]any)
	s.EqualValues(1, stats["onlineUsers"])
	s.EqualValues(1, stats["activeRooms"])
	s.EqualValues(0, stats["activeGames"])
	s.EqualValues(1, stats["registeredUsers"])
}

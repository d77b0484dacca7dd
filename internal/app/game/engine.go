/*
This file implements the game state machine: role dealing, the night/day/voting
phase cycle, action handling, elimination and win evaluation, and the return of
a finished room to the waiting state. Every entry point here runs on the hub's
mutation stream.
*/
package game

import (
	"context"
	"fmt"
	"time"

	"mafiagame/internal/app/store"
	"mafiagame/internal/pkg/errs"
	"mafiagame/internal/pkg/randx"
)

// Phase is the game phase.
type Phase string

const (
	PhaseNight  Phase = "night"
	PhaseDay    Phase = "day"
	PhaseVoting Phase = "voting"
	PhaseEnded  Phase = "ended"
)

// Action kinds accepted by handleGameAction.
const (
	ActionKill = "kill"
	ActionHeal = "heal"
	ActionVote = "vote"
)

// Winner labels used in gameEnded events and result records.
const (
	WinnerMafia = "mafia"
	WinnerTown  = "town"
	WinnerNone  = "none"
)

// Coin rewards credited when a game result is recorded.
const (
	coinsParticipation = 10
	coinsSurvival      = 15
	coinsVictory       = 25
)

// Game is the live state of a room's running game. Owned by the hub's
// mutation stream.
type Game struct {
	Phase      Phase
	Day        int
	TimeLeft   int
	LastAction string

	// Votes maps voter to target for the current voting phase.
	Votes map[string]string

	// NightKills and NightHeals map actor to target for the current night.
	NightKills map[string]string
	NightHeals map[string]string

	clock *tickHandle
}

func newGame(nightSeconds int) *Game {
	return &Game{
		Phase:      PhaseNight,
		Day:        1,
		TimeLeft:   nightSeconds,
		LastAction: "Night falls over the city.",
		Votes:      make(map[string]string),
		NightKills: make(map[string]string),
		NightHeals: make(map[string]string),
	}
}

// forget scrubs a departed player's pending actions, both as actor and as
// target, so phase resolution never references a vacated seat.
func (g *Game) forget(nickname string) {
	for _, m := range []map[string]string{g.Votes, g.NightKills, g.NightHeals} {
		delete(m, nickname)
		for actor, target := range m {
			if target == nickname {
				delete(m, actor)
			}
		}
	}
}

// tally counts current votes per target.
func (g *Game) tally() map[string]int {
	counts := make(map[string]int, len(g.Votes))
	for _, target := range g.Votes {
		counts[target]++
	}

	return counts
}

// view builds the public game snapshot.
func (g *Game) view() GameView {
	results := make(map[string]int)
	if g.Phase == PhaseVoting {
		results = g.tally()
	}

	return GameView{
		Phase:         g.Phase,
		Day:           g.Day,
		TimeLeft:      g.TimeLeft,
		VotingResults: results,
		LastAction:    g.LastAction,
	}
}

// buildRolePool composes the role multiset for n players: one don, mafia
// scaling with player count, optional doctor and lover pair, citizens for the
// remainder. One don is always dealt regardless of the room's role config.
func buildRolePool(n int, cfg RoleConfig) []Role {
	pool := make([]Role, 0, n)
	pool = append(pool, RoleDon)

	mafiaTotal := n / 3
	if mafiaTotal < 1 {
		mafiaTotal = 1
	}
	for i := 1; i < mafiaTotal && len(pool) < n; i++ {
		pool = append(pool, RoleMafia)
	}

	if cfg.Doctor && n >= 5 && len(pool) < n {
		pool = append(pool, RoleDoctor)
	}

	if cfg.Lovers && n >= 6 && len(pool)+2 <= n {
		pool = append(pool, RoleLover, RoleLover)
	}

	for len(pool) < n {
		pool = append(pool, RoleCitizen)
	}

	return pool
}

// assignRoles deals a shuffled role pool to the room's players.
func assignRoles(r *Room, rng randx.Rand) {
	pool := buildRolePool(len(r.Players), r.Roles)
	randx.Shuffle(rng, len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	for i, p := range r.Players {
		p.Role = pool[i]
		p.IsAlive = true
	}
}

// nightOutcome computes the night's kill resolution. The don's chosen target
// wins; absent one, the kill of the first living mafia-aligned player in seat
// order applies. A doctor heal on the same target cancels the kill.
func nightOutcome(r *Room, g *Game) (victim string, saved bool) {
	killTarget := ""
	for _, p := range r.Players {
		if !p.IsAlive || !p.Role.MafiaAligned() {
			continue
		}
		target, ok := g.NightKills[p.Nickname]
		if !ok {
			continue
		}
		if p.Role == RoleDon {
			killTarget = target
			break
		}
		if killTarget == "" {
			killTarget = target
		}
	}

	if killTarget == "" {
		return "", false
	}

	for _, p := range r.Players {
		if !p.IsAlive || p.Role != RoleDoctor {
			continue
		}
		if g.NightHeals[p.Nickname] == killTarget {
			return "", true
		}
	}

	return killTarget, false
}

// voteOutcome returns the target with a strict vote plurality, or "" on a tie
// or an empty tally.
func voteOutcome(counts map[string]int) string {
	best := ""
	bestCount := 0
	tied := false
	for target, count := range counts {
		switch {
		case count > bestCount:
			best, bestCount, tied = target, count, false
		case count == bestCount:
			tied = true
		}
	}

	if tied || bestCount == 0 {
		return ""
	}

	return best
}

// winnerOf evaluates the win conditions: mafia wins at numeric parity with the
// town, the town wins when no mafia-aligned player is left alive.
func winnerOf(r *Room) string {
	aliveMafia := 0
	aliveTotal := 0
	for _, p := range r.Players {
		if !p.IsAlive {
			continue
		}
		aliveTotal++
		if p.Role.MafiaAligned() {
			aliveMafia++
		}
	}

	if aliveMafia == 0 {
		return WinnerTown
	}
	if 2*aliveMafia >= aliveTotal {
		return WinnerMafia
	}

	return ""
}

// startGame transitions a waiting room into a running game: deals roles,
// delivers them privately, and starts the night-1 clock. A system start (auto
// start firing) bypasses the creator check.
func (h *Hub) startGame(r *Room, requester string, system bool) *errs.CustomError {
	if r.Status != RoomWaiting {
		return errs.NewError(errs.ErrAlreadyStarted)
	}
	if !system && requester != r.Creator {
		return errs.NewError(errs.ErrNotCreator)
	}
	if len(r.Players) < r.MinPlayers {
		return errs.NewError(errs.ErrNotEnoughPlayers)
	}

	h.cancelAutoStart(r, "")

	assignRoles(r, h.rng)
	r.Status = RoomPlaying
	h.persistRoomStatus(r)

	g := newGame(h.cfg.Game.NightSeconds)
	r.Game = g
	g.clock = h.startTicker(time.Second, func() {
		h.phaseTick(r.ID, g)
	})

	h.deliverRoles(r)
	h.broadcastRoomEvent(r, gameStartedEvent{Type: evtGameStarted, Message: "The game has started!"})
	h.systemChat(r, "The game has started! Night 1 begins.")
	h.broadcastRoomState(r)
	h.broadcastGameState(r)
	h.broadcastLobbyRooms()
	h.note("game started in room %s (%s) with %d players", r.Name, r.ID, len(r.Players))

	return nil
}

// deliverRoles sends each connected member their own role. Mafia-aligned
// players additionally receive the mafia roster.
func (h *Hub) deliverRoles(r *Room) {
	var mafiaRoster []string
	for _, p := range r.Players {
		if p.Role.MafiaAligned() {
			mafiaRoster = append(mafiaRoster, p.Nickname)
		}
	}

	for _, p := range r.Players {
		if p.IsBot {
			continue
		}
		member := h.roomSession(r, p.Nickname)
		if member == nil {
			continue
		}

		event := roleAssignedEvent{Type: evtRoleAssigned, Role: p.Role}
		if p.Role.MafiaAligned() {
			event.Teammates = mafiaRoster
		}
		member.sendEvent(event)
	}
}

// phaseTick is the per-second game clock callback. Ticks belonging to an
// ended or replaced game are ignored.
func (h *Hub) phaseTick(roomID string, g *Game) {
	r := h.rooms[roomID]
	if r == nil || r.Game != g || g.Phase == PhaseEnded {
		return
	}

	g.TimeLeft--
	if g.TimeLeft <= 0 {
		h.resolvePhase(r)
		return
	}

	h.broadcastGameState(r)
}

// handleGameAction validates and records a night or voting action, then
// resolves the phase early when every eligible actor has acted.
func (h *Hub) handleGameAction(s *Session, action GameAction) {
	r, g, actor, err := h.actionContext(s)
	if err != nil {
		s.sendError(err)
		return
	}

	target := r.player(action.Target)
	if target == nil || !target.IsAlive {
		s.sendError(errs.NewError(errs.ErrInvalidAction))
		return
	}

	switch {
	case g.Phase == PhaseNight && action.Action == ActionKill:
		if !actor.Role.MafiaAligned() {
			s.sendError(errs.NewError(errs.ErrInvalidAction))
			return
		}
		g.NightKills[actor.Nickname] = target.Nickname
		g.LastAction = "The mafia is choosing a victim..."

	case g.Phase == PhaseNight && action.Action == ActionHeal:
		if actor.Role != RoleDoctor {
			s.sendError(errs.NewError(errs.ErrInvalidAction))
			return
		}
		g.NightHeals[actor.Nickname] = target.Nickname
		g.LastAction = "The doctor is making the rounds..."

	case g.Phase == PhaseVoting && action.Action == ActionVote:
		g.Votes[actor.Nickname] = target.Nickname
		g.LastAction = fmt.Sprintf("%s has voted.", actor.Nickname)

	default:
		s.sendError(errs.NewError(errs.ErrInvalidAction))
		return
	}

	h.broadcastGameState(r)

	if h.phaseComplete(r, g) {
		h.resolvePhase(r)
	}
}

// actionContext resolves the acting session to a living player in a running
// game.
func (h *Hub) actionContext(s *Session) (*Room, *Game, *Player, error) {
	if s.user == nil {
		return nil, nil, nil, errs.NewError(errs.ErrNotAuthenticated)
	}

	r := h.rooms[s.roomID]
	if r == nil {
		return nil, nil, nil, errs.NewError(errs.ErrNotInRoom)
	}
	if r.Game == nil || r.Game.Phase == PhaseEnded {
		return nil, nil, nil, errs.NewError(errs.ErrGameNotFound)
	}

	actor := r.player(s.nickname())
	if actor == nil || !actor.IsAlive {
		return nil, nil, nil, errs.NewError(errs.ErrInvalidAction)
	}

	return r, r.Game, actor, nil
}

// phaseComplete reports whether every eligible human actor has submitted the
// current phase's action. Bots never act, so they are excluded; a phase with
// no eligible human actors is left to the clock.
func (h *Hub) phaseComplete(r *Room, g *Game) bool {
	eligible := 0

	switch g.Phase {
	case PhaseNight:
		for _, p := range r.Players {
			if !p.IsAlive || p.IsBot {
				continue
			}
			switch {
			case p.Role.MafiaAligned():
				eligible++
				if _, ok := g.NightKills[p.Nickname]; !ok {
					return false
				}
			case p.Role == RoleDoctor:
				eligible++
				if _, ok := g.NightHeals[p.Nickname]; !ok {
					return false
				}
			}
		}

	case PhaseVoting:
		for _, p := range r.Players {
			if !p.IsAlive || p.IsBot {
				continue
			}
			eligible++
			if _, ok := g.Votes[p.Nickname]; !ok {
				return false
			}
		}

	default:
		return false
	}

	return eligible > 0
}

// resolvePhase advances the game state machine one step.
func (h *Hub) resolvePhase(r *Room) {
	g := r.Game
	if g == nil {
		return
	}

	switch g.Phase {
	case PhaseNight:
		h.resolveNight(r, g)

	case PhaseDay:
		g.Phase = PhaseVoting
		g.TimeLeft = h.cfg.Game.VotingSeconds
		g.Votes = make(map[string]string)
		g.LastAction = "Voting has begun."
		h.systemChat(r, "Day discussion is over. Voting has begun!")
		h.broadcastGameState(r)

	case PhaseVoting:
		h.resolveVoting(r, g)
	}
}

func (h *Hub) resolveNight(r *Room, g *Game) {
	victim, saved := nightOutcome(r, g)
	g.NightKills = make(map[string]string)
	g.NightHeals = make(map[string]string)

	// a target that left before resolution counts as nobody.
	if victim != "" && r.player(victim) == nil {
		victim = ""
	}

	switch {
	case victim != "":
		r.player(victim).IsAlive = false
		g.LastAction = fmt.Sprintf("%s was killed during the night.", victim)
		h.systemChat(r, g.LastAction)
	case saved:
		g.LastAction = "The doctor saved someone this night!"
		h.systemChat(r, g.LastAction)
	default:
		g.LastAction = "The night passed quietly."
		h.systemChat(r, g.LastAction)
	}

	if victim != "" && h.checkWin(r) {
		return
	}

	g.Phase = PhaseDay
	g.TimeLeft = h.cfg.Game.DaySeconds
	h.broadcastRoomState(r)
	h.broadcastGameState(r)
}

func (h *Hub) resolveVoting(r *Room, g *Game) {
	eliminated := voteOutcome(g.tally())
	if eliminated != "" && r.player(eliminated) == nil {
		eliminated = ""
	}

	if eliminated != "" {
		r.player(eliminated).IsAlive = false
		g.LastAction = fmt.Sprintf("%s was voted out.", eliminated)
		h.systemChat(r, g.LastAction)

		if h.checkWin(r) {
			return
		}
	} else {
		g.LastAction = "The vote was tied. Nobody was eliminated."
		h.systemChat(r, g.LastAction)
	}

	g.Phase = PhaseNight
	g.Day++
	g.TimeLeft = h.cfg.Game.NightSeconds
	g.Votes = make(map[string]string)
	h.systemChat(r, fmt.Sprintf("Night %d begins.", g.Day))
	h.broadcastRoomState(r)
	h.broadcastGameState(r)
}

// checkWin evaluates the win conditions and ends the game when one holds.
func (h *Hub) checkWin(r *Room) bool {
	winner := winnerOf(r)
	if winner == "" {
		return false
	}

	h.endGame(r, winner)

	return true
}

// endGame finishes a game: reveals roles, records results, credits coins, and
// schedules the room's return to the waiting state.
func (h *Hub) endGame(r *Room, winner string) {
	g := r.Game
	g.Phase = PhaseEnded
	if g.clock != nil {
		g.clock.Cancel()
		g.clock = nil
	}

	r.Status = RoomFinished
	h.persistRoomStatus(r)

	switch winner {
	case WinnerMafia:
		g.LastAction = "The mafia has taken over the city!"
	case WinnerTown:
		g.LastAction = "The town has rooted out the mafia!"
	}

	roles := make(map[string]Role, len(r.Players))
	for _, p := range r.Players {
		roles[p.Nickname] = p.Role
	}

	h.recordResults(r, winner)

	h.broadcastRoomEvent(r, gameEndedEvent{Type: evtGameEnded, Winner: winner, Roles: roles})
	h.systemChat(r, fmt.Sprintf("Game over! %s", g.LastAction))
	h.broadcastRoomState(r)
	h.broadcastLobbyRooms()
	h.note("game ended in room %s (%s), winner: %s", r.Name, r.ID, winner)

	h.scheduleRoomReset(r, g)
}

// recordResults persists per-player outcomes and updates cached accounts of
// connected members. Lovers share their fate: if either lover died, both lose
// even on a town win.
func (h *Hub) recordResults(r *Room, winner string) {
	loverDied := false
	for _, p := range r.Players {
		if p.Role == RoleLover && !p.IsAlive {
			loverDied = true
		}
	}

	results := make([]store.GameResult, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsBot {
			continue
		}

		won := false
		switch {
		case p.Role.MafiaAligned():
			won = winner == WinnerMafia
		case p.Role == RoleLover:
			won = winner == WinnerTown && !loverDied
		default:
			won = winner == WinnerTown
		}

		delta := coinsParticipation
		if p.IsAlive {
			delta += coinsSurvival
		}
		if won {
			delta += coinsVictory
		}

		results = append(results, store.GameResult{
			Nickname:   p.Nickname,
			Won:        won,
			Survived:   p.IsAlive,
			CoinsDelta: delta,
		})

		if member := h.byNickname[p.Nickname]; member != nil && member.user != nil {
			member.user.Coins += delta
			member.user.GamesPlayed++
			if won {
				member.user.GamesWon++
			}
			if p.IsAlive {
				member.user.GamesSurvived++
			}
		}
	}

	h.persist("record game results", func(ctx context.Context) error {
		return h.store.RecordGameResult(ctx, results)
	})
}

// scheduleRoomReset arms the delayed waiting-state reset after a finished
// game. The handle is kept on the room so deletion can cancel it.
func (h *Hub) scheduleRoomReset(r *Room, g *Game) {
	roomID := r.ID
	r.resetTimer = time.AfterFunc(time.Duration(h.cfg.Game.ResetSeconds)*time.Second, func() {
		h.post(func() {
			h.resetRoom(roomID, g)
		})
	})
}

// resetRoom returns a finished room to the waiting state. Stale resets for a
// deleted room or a replaced game are ignored.
func (h *Hub) resetRoom(roomID string, g *Game) {
	r := h.rooms[roomID]
	if r == nil || r.Game != g || r.Status != RoomFinished {
		return
	}

	h.clearGame(r)
	h.systemChat(r, "The room is open for a new game.")
	h.broadcastRoomState(r)
	h.broadcastLobbyRooms()
	h.evalAutoStart(r)
}

// clearGame wipes game state and role assignments and returns the room to
// waiting.
func (h *Hub) clearGame(r *Room) {
	if r.resetTimer != nil {
		r.resetTimer.Stop()
		r.resetTimer = nil
	}
	if r.Game != nil && r.Game.clock != nil {
		r.Game.clock.Cancel()
	}
	r.Game = nil
	r.Status = RoomWaiting
	h.persistRoomStatus(r)

	for _, p := range r.Players {
		p.Role = ""
		p.IsAlive = true
	}
}

// forceEndGame aborts a running game by admin decree: roles are revealed in a
// final snapshot, then the room is reset to waiting in the same mutation.
func (h *Hub) forceEndGame(r *Room) {
	g := r.Game
	if g == nil {
		h.clearGame(r)
		h.broadcastRoomState(r)
		h.broadcastLobbyRooms()
		return
	}

	g.Phase = PhaseEnded
	if g.clock != nil {
		g.clock.Cancel()
		g.clock = nil
	}

	r.Status = RoomFinished
	roles := make(map[string]Role, len(r.Players))
	for _, p := range r.Players {
		roles[p.Nickname] = p.Role
	}

	h.broadcastRoomEvent(r, gameEndedEvent{Type: evtGameEnded, Winner: WinnerNone, Roles: roles})
	h.systemChat(r, "The game was ended by an administrator.")
	h.broadcastRoomState(r)

	h.clearGame(r)
	h.broadcastRoomState(r)
	h.broadcastLobbyRooms()
	h.evalAutoStart(r)
	h.note("game force-ended in room %s (%s)", r.Name, r.ID)
}

package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mekides/tictactoe-services/internal/comm"
	"github.com/mekides/tictactoe-services/internal/gamesvc/game"
	"github.com/mekides/tictactoe-services/internal/gamesvc/models"
)

// fakeStore is an in-memory implementation of all three store
// interfaces. The mutex-guarded Append enforces the same (game_id,
// position) uniqueness the Postgres constraint does, so the
// concurrency contract is exercised for real.
type fakeStore struct {
	mu      sync.Mutex
	seq     int
	players map[string]*models.Player // keyed by id
	games   map[string]*models.Game
	moves   map[string][]models.Move
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players: make(map[string]*models.Player),
		games:   make(map[string]*models.Game),
		moves:   make(map[string][]models.Move),
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeStore) Upsert(ctx context.Context, username string) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players {
		if p.Username == username {
			cp := *p
			return &cp, nil
		}
	}
	p := &models.Player{ID: f.nextID("player"), Username: username, CreatedAt: time.Now()}
	f.players[p.ID] = p
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetByUsername(ctx context.Context, username string) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players {
		if p.Username == username {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) ListByWins(ctx context.Context) ([]*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Player, 0, len(f.players))
	for _, p := range f.players {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins == out[j].Wins {
			return out[i].Username < out[j].Username
		}
		return out[i].Wins > out[j].Wins
	})
	return out, nil
}

func (f *fakeStore) Create(ctx context.Context, player1ID string) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := &models.Game{
		ID:        f.nextID("game"),
		Player1ID: player1ID,
		Status:    models.StatusOpen,
		CreatedAt: time.Now(),
	}
	f.games[g.ID] = g
	cp := *g
	return &cp, nil
}

func (f *fakeStore) getGame(id string) (*models.Game, bool) {
	g, ok := f.games[id]
	return g, ok
}

func (f *fakeStore) GetGameByID(ctx context.Context, id string) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.getGame(id)
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (f *fakeStore) Join(ctx context.Context, gameID, player2ID string) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.getGame(gameID)
	if !ok || g.Status != models.StatusOpen {
		return nil, game.E(game.KindInvalidState, "game is not open")
	}
	g.Player2ID = &player2ID
	g.Status = models.StatusActive
	cp := *g
	return &cp, nil
}

func (f *fakeStore) Finish(ctx context.Context, gameID string, winnerID *string) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.getGame(gameID)
	if !ok || g.Status != models.StatusActive {
		return nil, game.E(game.KindInvalidState, "game is not active")
	}
	now := time.Now()
	g.Status = models.StatusFinished
	g.WinnerID = winnerID
	g.EndedAt = &now

	if winnerID != nil {
		loserID := g.Player1ID
		if *winnerID == g.Player1ID {
			loserID = *g.Player2ID
		}
		f.players[*winnerID].Wins++
		f.players[loserID].Losses++
	} else {
		f.players[g.Player1ID].Draws++
		f.players[*g.Player2ID].Draws++
	}

	cp := *g
	return &cp, nil
}

func (f *fakeStore) ListOpen(ctx context.Context, limit int) ([]*models.OpenGame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.OpenGame
	for _, g := range f.games {
		if g.Status != models.StatusOpen || g.Player2ID != nil {
			continue
		}
		out = append(out, &models.OpenGame{
			ID:              g.ID,
			Player1ID:       g.Player1ID,
			Player1Username: f.players[g.Player1ID].Username,
			CreatedAt:       g.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ListByPlayer(ctx context.Context, playerID string) ([]*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Game
	for _, g := range f.games {
		if g.Player1ID == playerID || (g.Player2ID != nil && *g.Player2ID == playerID) {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) Append(ctx context.Context, gameID, playerID string, position int) (*models.Move, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.moves[gameID] {
		if m.Position == position {
			return nil, game.E(game.KindCellOccupied, "cell already occupied")
		}
	}
	m := models.Move{
		ID:       f.nextID("move"),
		GameID:   gameID,
		PlayerID: playerID,
		Position: position,
		// strictly increasing per game so ledger order is unambiguous
		Timestamp: time.Unix(0, int64(len(f.moves[gameID])+1)*int64(time.Millisecond)),
	}
	f.moves[gameID] = append(f.moves[gameID], m)
	return &m, nil
}

func (f *fakeStore) List(ctx context.Context, gameID string) ([]models.Move, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Move, len(f.moves[gameID]))
	copy(out, f.moves[gameID])
	return out, nil
}

// gameStoreAdapter renames GetGameByID to the GameStore interface
// method without colliding with the player GetByID on fakeStore.
type gameStoreAdapter struct{ *fakeStore }

func (a gameStoreAdapter) GetByID(ctx context.Context, id string) (*models.Game, error) {
	return a.GetGameByID(ctx, id)
}

// fakeEvents records published events.
type fakeEvents struct {
	mu       sync.Mutex
	updated  []comm.GameEvent
	finished []comm.GameEvent
}

func (f *fakeEvents) GameUpdated(ev comm.GameEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, ev)
}

func (f *fakeEvents) GameFinished(ev comm.GameEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, ev)
}

func newTestService() (*GameService, *PlayerService, *fakeStore, *fakeEvents) {
	fs := newFakeStore()
	ev := &fakeEvents{}
	return NewGameService(gameStoreAdapter{fs}, fs, fs, ev), NewPlayerService(fs), fs, ev
}

// activeGame creates a game between alice and bob and returns its id.
func activeGame(t *testing.T, svc *GameService) string {
	t.Helper()
	g, err := svc.Create(context.Background(), "alice")
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), g.ID, "bob")
	require.NoError(t, err)
	return g.ID
}

func TestCreateGame(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "   ")
	assert.True(t, game.IsKind(err, game.KindInvalidInput))

	g, err := svc.Create(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, g.Status)
	assert.Nil(t, g.Player2ID)
	assert.Nil(t, g.WinnerID)
}

func TestJoinGame(t *testing.T) {
	svc, _, _, events := newTestService()
	ctx := context.Background()

	_, err := svc.Join(ctx, "missing", "bob")
	assert.True(t, game.IsKind(err, game.KindNotFound))

	g, err := svc.Create(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.Join(ctx, g.ID, "alice")
	assert.True(t, game.IsKind(err, game.KindInvalidInput), "host cannot join own game")

	joined, err := svc.Join(ctx, g.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, joined.Status)
	require.NotNil(t, joined.Player2ID)

	// a second joiner is late: the game is no longer open
	_, err = svc.Join(ctx, g.ID, "carol")
	assert.True(t, game.IsKind(err, game.KindInvalidState))

	assert.Len(t, events.updated, 1)
}

func TestSubmitMovePreconditions(t *testing.T) {
	svc, _, fs, _ := newTestService()
	ctx := context.Background()

	gameID := activeGame(t, svc)

	_, err := svc.SubmitMove(ctx, gameID, "alice", 9)
	assert.True(t, game.IsKind(err, game.KindInvalidInput))
	_, err = svc.SubmitMove(ctx, gameID, "alice", -1)
	assert.True(t, game.IsKind(err, game.KindInvalidInput))

	_, err = svc.SubmitMove(ctx, "missing", "alice", 0)
	assert.True(t, game.IsKind(err, game.KindNotFound))

	openGame, err := svc.Create(ctx, "carol")
	require.NoError(t, err)
	_, err = svc.SubmitMove(ctx, openGame.ID, "carol", 0)
	assert.True(t, game.IsKind(err, game.KindInvalidState), "open game accepts no moves")

	_, err = svc.SubmitMove(ctx, gameID, "nobody", 0)
	assert.True(t, game.IsKind(err, game.KindNotFound))

	_, err = svc.SubmitMove(ctx, gameID, "carol", 0)
	assert.True(t, game.IsKind(err, game.KindForbidden), "carol is not in this game")

	// player2 may not open the game
	_, err = svc.SubmitMove(ctx, gameID, "bob", 0)
	assert.True(t, game.IsKind(err, game.KindOutOfTurn))
	moves, _ := fs.List(ctx, gameID)
	assert.Empty(t, moves, "rejected move must not touch the ledger")

	// alice took cell 4, bob cannot take it again
	_, err = svc.SubmitMove(ctx, gameID, "alice", 4)
	require.NoError(t, err)
	_, err = svc.SubmitMove(ctx, gameID, "bob", 4)
	assert.True(t, game.IsKind(err, game.KindCellOccupied))

	// alice cannot move twice in a row
	_, err = svc.SubmitMove(ctx, gameID, "alice", 0)
	assert.True(t, game.IsKind(err, game.KindOutOfTurn))
}

func TestWinScenario(t *testing.T) {
	svc, playerSvc, _, events := newTestService()
	ctx := context.Background()

	gameID := activeGame(t, svc)

	// alice: 0, 3, 6 (left column), bob: 1, 4
	for _, step := range []struct {
		username string
		position int
	}{
		{"alice", 0}, {"bob", 1}, {"alice", 3}, {"bob", 4},
	} {
		_, err := svc.SubmitMove(ctx, gameID, step.username, step.position)
		require.NoError(t, err)
	}

	snapshot, err := svc.Snapshot(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, [9]string{"X", "O", "", "X", "O", "", "", "", ""}, snapshot.Board)
	assert.Equal(t, models.StatusActive, snapshot.Game.Status)

	moveID, err := svc.SubmitMove(ctx, gameID, "alice", 6)
	require.NoError(t, err)
	assert.NotEmpty(t, moveID)

	snapshot, err = svc.Snapshot(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, [9]string{"X", "O", "", "X", "O", "", "X", "", ""}, snapshot.Board)
	assert.Equal(t, "X", snapshot.WinnerSymbol)
	assert.False(t, snapshot.IsDraw)
	assert.Equal(t, models.StatusFinished, snapshot.Game.Status)
	require.NotNil(t, snapshot.Game.WinnerID)
	assert.Equal(t, snapshot.Game.Player1ID, *snapshot.Game.WinnerID)
	assert.NotNil(t, snapshot.Game.EndedAt)

	// stats moved exactly once
	alice, err := playerSvc.Get(ctx, "alice")
	require.NoError(t, err)
	bob, err := playerSvc.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.Wins)
	assert.Equal(t, 0, alice.Losses)
	assert.Equal(t, 1, bob.Losses)
	assert.Equal(t, 0, bob.Wins)

	// finished games accept nothing further
	_, err = svc.SubmitMove(ctx, gameID, "bob", 2)
	assert.True(t, game.IsKind(err, game.KindInvalidState))
	_, err = svc.Join(ctx, gameID, "carol")
	assert.True(t, game.IsKind(err, game.KindInvalidState))

	assert.Len(t, events.finished, 1)
	assert.Equal(t, "X", events.finished[0].WinnerSymbol)
}

func TestDrawScenario(t *testing.T) {
	svc, playerSvc, _, events := newTestService()
	ctx := context.Background()

	gameID := activeGame(t, svc)

	// produces X O X / X O O / O X X, no line of three
	positions := []int{0, 1, 2, 4, 3, 5, 7, 6, 8}
	for i, pos := range positions {
		username := "alice"
		if i%2 == 1 {
			username = "bob"
		}
		_, err := svc.SubmitMove(ctx, gameID, username, pos)
		require.NoErrorf(t, err, "move %d at %d", i, pos)
	}

	snapshot, err := svc.Snapshot(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, "", snapshot.WinnerSymbol)
	assert.True(t, snapshot.IsDraw)
	assert.Equal(t, models.StatusFinished, snapshot.Game.Status)
	assert.Nil(t, snapshot.Game.WinnerID)
	assert.NotNil(t, snapshot.Game.EndedAt)

	alice, err := playerSvc.Get(ctx, "alice")
	require.NoError(t, err)
	bob, err := playerSvc.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.Draws)
	assert.Equal(t, 1, bob.Draws)
	assert.Zero(t, alice.Wins+alice.Losses+bob.Wins+bob.Losses)

	require.Len(t, events.finished, 1)
	assert.True(t, events.finished[0].IsDraw)
}

// staleLedger serves the empty pre-move ledger to the first two reads,
// reproducing the stale-read race deterministically: both writers pass
// the turn and cell-empty checks, only the append backstop decides.
type staleLedger struct {
	*fakeStore
	reads int32
}

func (s *staleLedger) List(ctx context.Context, gameID string) ([]models.Move, error) {
	if atomic.AddInt32(&s.reads, 1) <= 2 {
		return nil, nil
	}
	return s.fakeStore.List(ctx, gameID)
}

func TestConcurrentMovesOnSameCell(t *testing.T) {
	fs := newFakeStore()
	ledger := &staleLedger{fakeStore: fs}
	svc := NewGameService(gameStoreAdapter{fs}, ledger, fs, nil)
	ctx := context.Background()

	g, err := svc.Create(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.Join(ctx, g.ID, "bob")
	require.NoError(t, err)
	gameID := g.ID

	// Both requests act for alice on cell 4. Each passes the
	// cell-empty pre-check against the stale ledger; the append
	// backstop lets exactly one through.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitMove(ctx, gameID, "alice", 4)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var okCount, occupiedCount int
	for err := range errs {
		switch {
		case err == nil:
			okCount++
		case game.IsKind(err, game.KindCellOccupied):
			occupiedCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, okCount, "exactly one writer wins the cell")
	assert.Equal(t, 1, occupiedCount, "the loser sees CellOccupied")

	moves, _ := fs.List(ctx, gameID)
	assert.Len(t, moves, 1)
}

func TestTurnAlternation(t *testing.T) {
	svc, _, fs, _ := newTestService()
	ctx := context.Background()

	gameID := activeGame(t, svc)

	// the Nth accepted move belongs to player1 on even N, player2 on odd N
	order := []string{"alice", "bob", "alice", "bob", "alice"}
	positions := []int{8, 0, 4, 2, 6}
	for i := range order {
		_, err := svc.SubmitMove(ctx, gameID, order[i], positions[i])
		require.NoError(t, err)
	}

	moves, err := fs.List(ctx, gameID)
	require.NoError(t, err)
	g, err := fs.GetGameByID(ctx, gameID)
	require.NoError(t, err)
	for i, m := range moves {
		if i%2 == 0 {
			assert.Equal(t, g.Player1ID, m.PlayerID)
		} else {
			assert.Equal(t, *g.Player2ID, m.PlayerID)
		}
	}
}

func TestSnapshotNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Snapshot(context.Background(), "missing")
	assert.True(t, game.IsKind(err, game.KindNotFound))
}

func TestListOpenGames(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	g1, err := svc.Create(ctx, "alice")
	require.NoError(t, err)
	g2, err := svc.Create(ctx, "bob")
	require.NoError(t, err)

	// an active game leaves the lobby
	_, err = svc.Join(ctx, g1.ID, "carol")
	require.NoError(t, err)

	open, err := svc.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, g2.ID, open[0].ID)
	assert.Equal(t, "bob", open[0].Player1Username)
}

func TestPlayerHistory(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.History(ctx, "nobody")
	assert.True(t, game.IsKind(err, game.KindNotFound))

	// finished win for alice
	won := activeGame(t, svc)
	for _, step := range []struct {
		username string
		position int
	}{
		{"alice", 0}, {"bob", 3}, {"alice", 1}, {"bob", 4}, {"alice", 2},
	} {
		_, err := svc.SubmitMove(ctx, won, step.username, step.position)
		require.NoError(t, err)
	}

	// in-progress game hosted by alice
	g, err := svc.Create(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.Join(ctx, g.ID, "dave")
	require.NoError(t, err)

	history, err := svc.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 2)

	byID := map[string]*HistoryEntry{}
	for _, e := range history {
		byID[e.GameID] = e
	}
	assert.Equal(t, "won", byID[won].Outcome)
	assert.Equal(t, "X", byID[won].WinnerSymbol)
	assert.Equal(t, 5, byID[won].MoveCount)
	assert.Equal(t, "in_progress", byID[g.ID].Outcome)

	history, err = svc.History(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "lost", history[0].Outcome)
}

func TestLeaderboardAndWinRate(t *testing.T) {
	svc, playerSvc, _, _ := newTestService()
	ctx := context.Background()

	gameID := activeGame(t, svc)
	for _, step := range []struct {
		username string
		position int
	}{
		{"alice", 0}, {"bob", 3}, {"alice", 1}, {"bob", 4}, {"alice", 2},
	} {
		_, err := svc.SubmitMove(ctx, gameID, step.username, step.position)
		require.NoError(t, err)
	}

	_, err := playerSvc.Upsert(ctx, "carol")
	require.NoError(t, err)

	entries, err := playerSvc.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "alice", entries[0].Username)
	assert.Equal(t, 1, entries[0].Wins)
	assert.Equal(t, "1.000", entries[0].WinRate)

	for _, e := range entries[1:] {
		switch e.Username {
		case "bob":
			assert.Equal(t, "0.000", e.WinRate) // 0 wins, 1 loss
		case "carol":
			assert.Equal(t, "0.000", e.WinRate) // no games at all
		}
	}
}

func TestUpsertPlayerIdempotent(t *testing.T) {
	_, playerSvc, _, _ := newTestService()
	ctx := context.Background()

	_, err := playerSvc.Upsert(ctx, "")
	assert.True(t, game.IsKind(err, game.KindInvalidInput))

	first, err := playerSvc.Upsert(ctx, "alice")
	require.NoError(t, err)
	second, err := playerSvc.Upsert(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

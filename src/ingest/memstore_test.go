package ingest

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/tcadamson/recap.agdg.app/src/models"
)

// memStore is a Store that keeps everything in maps. A transaction works on
// a copy of the state and swaps it in on commit.
type memStore struct {
	mu    sync.Mutex
	state memState

	failBegins  int // fail this many Begin calls
	failOnTitle string
	begins      int
	commits     int
}

type memState struct {
	games        map[int]models.Game
	posts        map[int]models.Post
	formerTitles map[string]int // lowercased
	nextID       int
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		games:        map[int]models.Game{},
		posts:        map[int]models.Post{},
		formerTitles: map[string]int{},
	}}
}

func (s memState) clone() memState {
	return memState{
		games:        maps.Clone(s.games),
		posts:        maps.Clone(s.posts),
		formerTitles: maps.Clone(s.formerTitles),
		nextID:       s.nextID,
	}
}

var errStoreDown = errors.New("store is down")

func (s *memStore) Begin(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.begins++
	if s.failBegins > 0 {
		s.failBegins--
		return nil, errStoreDown
	}
	return &memTx{store: s, state: s.state.clone()}, nil
}

func (s *memStore) games() []models.Game {
	s.mu.Lock()
	defer s.mu.Unlock()

	var games []models.Game
	for _, id := range slices.Sorted(maps.Keys(s.state.games)) {
		games = append(games, s.state.games[id])
	}
	return games
}

func (s *memStore) posts() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	var posts []models.Post
	for _, id := range slices.Sorted(maps.Keys(s.state.posts)) {
		posts = append(posts, s.state.posts[id])
	}
	return posts
}

type memTx struct {
	store *memStore
	state memState
	done  bool
}

func (tx *memTx) GameByTitle(ctx context.Context, title string) (*models.Game, error) {
	for _, g := range tx.state.games {
		if strings.EqualFold(g.Title, title) {
			return &g, nil
		}
	}
	if id, ok := tx.state.formerTitles[strings.ToLower(title)]; ok {
		return tx.GameByID(ctx, id)
	}
	return nil, ErrNotFound
}

func (tx *memTx) GameByID(ctx context.Context, id int) (*models.Game, error) {
	g, ok := tx.state.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (tx *memTx) CreateGame(ctx context.Context, game models.Game) (*models.Game, error) {
	if tx.store.failOnTitle != "" && strings.EqualFold(game.Title, tx.store.failOnTitle) {
		return nil, errStoreDown
	}
	if _, err := tx.GameByTitle(ctx, game.Title); err == nil {
		return nil, ErrTitleTaken
	}
	tx.state.nextID++
	game.ID = tx.state.nextID
	tx.state.games[game.ID] = game
	return &game, nil
}

func (tx *memTx) UpdateGame(ctx context.Context, game models.Game) error {
	stored, ok := tx.state.games[game.ID]
	if !ok {
		return ErrNotFound
	}
	for _, key := range models.GameFieldKeys {
		if value, ok := game.Field(key); ok {
			stored.SetField(key, value)
		}
	}
	tx.state.games[game.ID] = stored
	return nil
}

func (tx *memTx) RenameGame(ctx context.Context, id int, title string) error {
	stored, ok := tx.state.games[id]
	if !ok {
		return ErrNotFound
	}
	for otherID, g := range tx.state.games {
		if otherID != id && strings.EqualFold(g.Title, title) {
			return ErrTitleTaken
		}
	}
	tx.state.formerTitles[strings.ToLower(stored.Title)] = id
	delete(tx.state.formerTitles, strings.ToLower(title))
	stored.Title = title
	tx.state.games[id] = stored
	return nil
}

func (tx *memTx) HasPost(ctx context.Context, gameID int, unix int64) (bool, error) {
	for _, p := range tx.state.posts {
		if p.GameID == gameID && p.Unix == unix {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) PostsByGame(ctx context.Context, gameID int) ([]*models.Post, error) {
	var posts []*models.Post
	for _, id := range slices.Sorted(maps.Keys(tx.state.posts)) {
		if p := tx.state.posts[id]; p.GameID == gameID {
			posts = append(posts, &p)
		}
	}
	return posts, nil
}

func (tx *memTx) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	if _, ok := tx.state.games[post.GameID]; !ok {
		return nil, ErrNotFound
	}
	tx.state.nextID++
	post.ID = tx.state.nextID
	tx.state.posts[post.ID] = post
	return &post, nil
}

func (tx *memTx) Commit(ctx context.Context) error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	tx.done = true

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	tx.store.state = tx.state
	tx.store.commits++
	return nil
}

func (tx *memTx) Rollback(ctx context.Context) error {
	tx.done = true
	return nil
}

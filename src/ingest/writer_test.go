package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcadamson/recap.agdg.app/src/models"
	"github.com/tcadamson/recap.agdg.app/src/parsing"
)

// Saturday 18 April 2020, recap week 20043.
const postTime = 1587240800

func write(t *testing.T, store *memStore, comment string, postTime int64, filename string) WriteResult {
	t.Helper()
	ctx := context.Background()

	recap := parsing.ParseRecap(comment, postTime, filename)
	require.NotNil(t, recap, "comment should be a recap: %q", comment)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	var w Writer
	res, err := w.Write(ctx, tx, recap)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	return res
}

func strp(s string) *string {
	return &s
}

func TestWrite(t *testing.T) {
	store := newMemStore()

	res := write(t, store, ":: Foo ::<br>dev::Bar<br>tools::Baz<br>progress text", postTime, "1587240800123.png")
	assert.True(t, res.GameCreated)
	require.NotNil(t, res.Post)
	assert.Equal(t, 20043, res.Post.Datestamp)

	assert.Equal(t, []models.Game{{ID: 1, Title: "Foo", Dev: strp("Bar"), Tools: strp("Baz")}}, store.games())
	assert.Equal(t, []models.Post{{
		ID:        2,
		GameID:    1,
		Unix:      postTime,
		Datestamp: 20043,
		Filename:  strp("1587240800123.png"),
		Progress:  "progress text",
	}}, store.posts())

	t.Run("titles match case-insensitively", func(t *testing.T) {
		res := write(t, store, ":: foo ::<br>web::https://foo.example<br>more progress", postTime+86400, "")
		assert.False(t, res.GameCreated)
		assert.Equal(t, 1, res.Game.ID)

		games := store.games()
		require.Len(t, games, 1)
		assert.Equal(t, "Foo", games[0].Title, "the original spelling is kept")
		assert.Equal(t, strp("Bar"), games[0].Dev, "absent fields are left alone")
		assert.Equal(t, strp("https://foo.example"), games[0].Web)
		assert.Len(t, store.posts(), 2)
		assert.Nil(t, store.posts()[1].Filename)
	})

	t.Run("fields overwrite", func(t *testing.T) {
		write(t, store, ":: Foo ::<br>dev::Qux<br>still going", postTime+2*86400, "")
		assert.Equal(t, strp("Qux"), store.games()[0].Dev)
	})

	t.Run("the same post is only written once", func(t *testing.T) {
		before := store.posts()
		res := write(t, store, ":: Foo ::<br>progress text, edited", postTime, "")
		assert.Nil(t, res.Post)
		assert.Equal(t, before, store.posts())
	})

	t.Run("empty progress only touches the game", func(t *testing.T) {
		before := len(store.posts())
		res := write(t, store, ":: Empty ::<br>dev::Someone", postTime, "")
		assert.True(t, res.GameCreated)
		assert.Nil(t, res.Post)
		assert.Len(t, store.posts(), before)
	})
}

func TestWriteIsIdempotent(t *testing.T) {
	comments := []string{
		":: Foo ::<br>dev::Bar<br>week one",
		":: Bar Game ::<br>tools::Godot<br>something",
		":: FOO ::<br>dev::Baz<br>week two",
	}

	once := newMemStore()
	for i, c := range comments {
		write(t, once, c, postTime+int64(i), "")
	}
	twice := newMemStore()
	for range 2 {
		for i, c := range comments {
			write(t, twice, c, postTime+int64(i), "")
		}
	}

	assert.Equal(t, once.games(), twice.games())
	assert.Equal(t, once.posts(), twice.posts())
	assert.Equal(t, strp("Baz"), once.games()[0].Dev)
}

func TestWriteRename(t *testing.T) {
	t.Run("renames in place", func(t *testing.T) {
		store := newMemStore()
		write(t, store, ":: OldName ::<br>first", postTime, "")

		res := write(t, store, ":: OldName :: NewName ::<br>second", postTime+1, "")
		assert.True(t, res.Renamed)
		assert.False(t, res.GameCreated)

		games := store.games()
		require.Len(t, games, 1)
		assert.Equal(t, "NewName", games[0].Title)
		assert.Len(t, store.posts(), 2)
		for _, p := range store.posts() {
			assert.Equal(t, games[0].ID, p.GameID)
		}

		// The thread is still open, so the next run sees both posts again.
		res = write(t, store, ":: OldName ::<br>first", postTime, "")
		assert.Equal(t, games[0].ID, res.Game.ID, "the old title still finds the game")
		res = write(t, store, ":: OldName :: NewName ::<br>second", postTime+1, "")
		assert.False(t, res.Renamed)
		assert.Equal(t, "NewName", res.Game.Title)
		assert.Equal(t, games, store.games())
		assert.Len(t, store.posts(), 2)
	})
	t.Run("renaming back", func(t *testing.T) {
		store := newMemStore()
		write(t, store, ":: A ::<br>one", postTime, "")
		write(t, store, ":: A :: B ::<br>two", postTime+1, "")
		res := write(t, store, ":: B :: A ::<br>three", postTime+2, "")
		assert.False(t, res.Renamed, "A still resolves to the game, so it counts as taken")
		assert.Equal(t, "B", res.Game.Title)
		assert.Len(t, store.games(), 1)
	})
	t.Run("taken name keeps the old title", func(t *testing.T) {
		store := newMemStore()
		write(t, store, ":: OldName ::<br>first", postTime, "")
		write(t, store, ":: NewName ::<br>other game", postTime, "")

		res := write(t, store, ":: OldName :: newname ::<br>second", postTime+1, "")
		assert.False(t, res.Renamed)
		assert.Equal(t, "OldName", res.Game.Title)
		assert.Len(t, store.games(), 2)
	})
	t.Run("unknown old name starts a new game", func(t *testing.T) {
		store := newMemStore()
		res := write(t, store, ":: Nothing :: Something ::<br>hello", postTime, "")
		assert.True(t, res.GameCreated)
		assert.False(t, res.Renamed)
		assert.Equal(t, "Something", res.Game.Title)
	})
}

// racyTx pretends another writer created the game between our lookup and
// our insert.
type racyTx struct {
	*memTx
	raced bool
}

func (tx *racyTx) GameByTitle(ctx context.Context, title string) (*models.Game, error) {
	if !tx.raced {
		return nil, ErrNotFound
	}
	return tx.memTx.GameByTitle(ctx, title)
}

func (tx *racyTx) CreateGame(ctx context.Context, game models.Game) (*models.Game, error) {
	tx.raced = true
	if _, err := tx.memTx.CreateGame(ctx, game); err != nil {
		return nil, err
	}
	return nil, ErrTitleTaken
}

func TestWriteTitleRace(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	inner, err := store.Begin(ctx)
	require.NoError(t, err)
	tx := &racyTx{memTx: inner.(*memTx)}

	var w Writer
	res, err := w.Write(ctx, tx, parsing.ParseRecap(":: Foo ::<br>hi", postTime, ""))
	require.NoError(t, err)
	assert.False(t, res.GameCreated)
	assert.Equal(t, "Foo", res.Game.Title)
	assert.NotNil(t, res.Post)
}

func TestWriteRejectsBadTime(t *testing.T) {
	ctx := context.Background()
	tx, err := newMemStore().Begin(ctx)
	require.NoError(t, err)

	var w Writer
	_, err = w.Write(ctx, tx, &parsing.Recap{Title: "Foo", Progress: "hi", Time: -1})
	assert.Error(t, err)
}

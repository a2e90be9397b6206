/*
This package contains lowish-level APIs for making database queries to the
Postgres recap database. It streamlines the process of mapping query results to
Go types, while allowing you to write arbitrary SQL queries.

Query syntax

Arguments can be provided using placeholders like $1, $2, etc. All arguments
will be safely escaped and mapped from their Go type to the correct Postgres
type. (This is a direct proxy to pgx.)

	ids, err := db.QueryScalar[int](ctx, conn,
		`
		SELECT id
		FROM game
		WHERE lower(title) = ANY($1)
		`,
		[]string{"foo", "bar"},
	)

(If you want to use a slice in your query, use Postgres arrays instead of IN.)

To query multiple columns at once, use a struct type with `db:"column_name"`
tags and the special $columns placeholder:

	type Game struct {
		ID    int     `db:"id"`
		Title string  `db:"title"`
		Dev   *string `db:"dev"`
	}
	games, err := db.Query[Game](ctx, conn, `SELECT $columns FROM game`)
	// Resulting query:
	// SELECT id, title, dev FROM game

Nullable columns map onto pointer fields, which are left nil for NULL.

When a table alias is required, include it in the placeholder like
$columns{alias}:

	posts, err := db.Query[models.Post](ctx, conn, `
		SELECT $columns{p}
		FROM
			post AS p
			JOIN game AS g ON g.id = p.game_id
		WHERE lower(g.title) = lower($1)
	`, title)
	// Resulting query:
	// SELECT p.id, p.game_id, ... FROM ...
*/
package db

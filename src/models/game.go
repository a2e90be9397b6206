package models

import "strings"

type Game struct {
	ID    int    `db:"id"`
	Title string `db:"title"` // unique, compared case-insensitively

	Dev   *string `db:"dev"`
	Tools *string `db:"tools"`
	Web   *string `db:"web"`
}

// The metadata keys a recap may set on its game.
var GameFieldKeys = []string{"dev", "tools", "web"}

// SetField overwrites one metadata field by key. Keys are matched
// case-insensitively; unknown keys are ignored and reported as false.
func (g *Game) SetField(key, value string) bool {
	v := value
	switch strings.ToLower(key) {
	case "dev":
		g.Dev = &v
	case "tools":
		g.Tools = &v
	case "web":
		g.Web = &v
	default:
		return false
	}
	return true
}

func (g *Game) Field(key string) (string, bool) {
	var p *string
	switch strings.ToLower(key) {
	case "dev":
		p = g.Dev
	case "tools":
		p = g.Tools
	case "web":
		p = g.Web
	}
	if p == nil {
		return "", false
	}
	return *p, true
}

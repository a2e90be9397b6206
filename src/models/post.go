package models

type Post struct {
	ID     int `db:"id"`
	GameID int `db:"game_id"`

	Unix      int64   `db:"unix"`      // origin time, seconds
	Datestamp int     `db:"datestamp"` // derived from Unix, see package datestamp
	Filename  *string `db:"filename"`  // media attachment, {tim}{ext}
	Progress  string  `db:"progress"`
}

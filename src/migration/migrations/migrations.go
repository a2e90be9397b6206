package migrations

import (
	"github.com/tcadamson/recap.agdg.app/src/migration/types"
)

var All = make(map[types.MigrationVersion]types.Migration)

func registerMigration(m types.Migration) {
	All[m.Version()] = m
}

package migration

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"github.com/tcadamson/recap.agdg.app/src/cli"
	"github.com/tcadamson/recap.agdg.app/src/db"
	"github.com/tcadamson/recap.agdg.app/src/migration/migrations"
	"github.com/tcadamson/recap.agdg.app/src/migration/types"
	"github.com/tcadamson/recap.agdg.app/src/oops"
)

var listMigrations bool

func init() {
	migrateCommand := &cobra.Command{
		Use:   "migrate [target migration id]",
		Short: "Run Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if listMigrations {
				ListMigrations(ctx)
				return nil
			}

			targetVersion := time.Time{}
			if len(args) > 0 {
				var err error
				targetVersion, err = time.Parse(time.RFC3339, args[0])
				if err != nil {
					return oops.New(err, "bad version string")
				}
			}
			return Migrate(ctx, types.MigrationVersion(targetVersion))
		},
	}
	migrateCommand.Flags().BoolVar(&listMigrations, "list", false, "List available migrations")

	makeMigrationCommand := &cobra.Command{
		Use:   "makemigration <name> <description>...",
		Short: "Create a new database migration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				fmt.Printf("You must provide a name and a description.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			name := args[0]
			description := strings.Join(args[1:], " ")

			path, err := MakeMigration(filepath.Join("src", "migration", "migrations"), name, description, time.Now())
			if err != nil {
				return err
			}
			fmt.Println("Successfully created migration file:")
			fmt.Println(path)
			return nil
		},
	}

	cli.RootCommand.AddCommand(migrateCommand)
	cli.RootCommand.AddCommand(makeMigrationCommand)
}

func getSortedMigrationVersions() []types.MigrationVersion {
	var allVersions []types.MigrationVersion
	for migrationTime := range migrations.All {
		allVersions = append(allVersions, migrationTime)
	}
	sort.Slice(allVersions, func(i, j int) bool {
		return allVersions[i].Before(allVersions[j])
	})

	return allVersions
}

func LatestVersion() types.MigrationVersion {
	allVersions := getSortedMigrationVersions()
	return allVersions[len(allVersions)-1]
}

func getCurrentVersion(ctx context.Context, conn db.ConnOrTx) (types.MigrationVersion, error) {
	var currentVersion time.Time
	row := conn.QueryRow(ctx, "SELECT version FROM recap_migration")
	err := row.Scan(&currentVersion)
	if err != nil {
		return types.MigrationVersion{}, err
	}
	currentVersion = currentVersion.UTC()

	return types.MigrationVersion(currentVersion), nil
}

// tryGetCurrentVersion returns the zero version if the database cannot be
// reached or has never been migrated.
func tryGetCurrentVersion(ctx context.Context) types.MigrationVersion {
	conn, err := db.NewConn(ctx)
	if err != nil {
		return types.MigrationVersion{}
	}
	defer conn.Close(ctx)

	currentVersion, _ := getCurrentVersion(ctx, conn)

	return currentVersion
}

func ListMigrations(ctx context.Context) {
	currentVersion := tryGetCurrentVersion(ctx)
	for _, version := range getSortedMigrationVersions() {
		migration := migrations.All[version]
		indicator := "  "
		if version.Equal(currentVersion) {
			indicator = "✔ "
		}
		fmt.Printf("%s%v (%s: %s)\n", indicator, version, migration.Name(), migration.Description())
	}
}

// Migrate rolls the database forward or back to targetVersion. The zero
// version means the latest migration.
func Migrate(ctx context.Context, targetVersion types.MigrationVersion) error {
	conn, err := db.NewConn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	// create migration table
	_, err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS recap_migration (
			version		TIMESTAMP WITH TIME ZONE
		)
	`)
	if err != nil {
		return oops.New(err, "failed to create migration table")
	}

	// ensure there is a row
	numRows, err := db.QueryOneScalar[int](ctx, conn, "SELECT COUNT(*) FROM recap_migration")
	if err != nil {
		return oops.New(err, "failed to count migration rows")
	}
	if numRows < 1 {
		_, err := conn.Exec(ctx, "INSERT INTO recap_migration (version) VALUES ($1)", time.Time{})
		if err != nil {
			return oops.New(err, "failed to insert initial migration row")
		}
	}

	currentVersion, err := getCurrentVersion(ctx, conn)
	if err != nil {
		return oops.New(err, "failed to get current version")
	}
	if currentVersion.IsZero() {
		fmt.Println("This is the first time you have run database migrations.")
	} else {
		fmt.Printf("Current version: %s\n", currentVersion.String())
	}

	allVersions := getSortedMigrationVersions()
	if targetVersion.IsZero() {
		targetVersion = allVersions[len(allVersions)-1]
	}

	currentIndex, targetIndex := planMigration(allVersions, currentVersion, targetVersion)
	if targetIndex < 0 {
		return oops.New(nil, "could not find migration with version %v", targetVersion)
	}

	if currentIndex < targetIndex {
		// roll forward
		for i := currentIndex + 1; i <= targetIndex; i++ {
			version := allVersions[i]
			migration := migrations.All[version]
			fmt.Printf("Applying migration %v (%v)\n", version, migration.Name())

			err := applyInTx(ctx, conn, version, migration.Up)
			if err != nil {
				return oops.New(err, "migration %v failed", version)
			}
		}
	} else if currentIndex > targetIndex {
		// roll back
		for i := currentIndex; i > targetIndex; i-- {
			version := allVersions[i]
			previousVersion := types.MigrationVersion{}
			if i > 0 {
				previousVersion = allVersions[i-1]
			}

			fmt.Printf("Rolling back migration %v\n", version)
			migration := migrations.All[version]
			err := applyInTx(ctx, conn, previousVersion, migration.Down)
			if err != nil {
				return oops.New(err, "rollback of migration %v failed", version)
			}
		}
	} else {
		fmt.Println("Already migrated; nothing to do.")
	}

	return nil
}

// planMigration finds where the database is and where it should end up in
// the sorted list of versions. A current index of -1 means nothing has been
// applied yet.
func planMigration(allVersions []types.MigrationVersion, current, target types.MigrationVersion) (currentIndex, targetIndex int) {
	currentIndex = -1
	targetIndex = -1
	for i, version := range allVersions {
		if current.Equal(version) {
			currentIndex = i
		}
		if target.Equal(version) {
			targetIndex = i
		}
	}
	return currentIndex, targetIndex
}

func applyInTx(ctx context.Context, conn *pgx.Conn, newVersion types.MigrationVersion, step func(context.Context, pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return oops.New(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	if err := step(ctx, tx); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, "UPDATE recap_migration SET version = $1", time.Time(newVersion))
	if err != nil {
		return oops.New(err, "failed to update version in migrations table")
	}

	return tx.Commit(ctx)
}

//go:embed migrationTemplate.txt
var migrationTemplate string

// MakeMigration writes a new migration file into dir and returns its path.
func MakeMigration(dir, name, description string, now time.Time) (string, error) {
	now = now.UTC()

	result := migrationTemplate
	result = strings.ReplaceAll(result, "%NAME%", name)
	result = strings.ReplaceAll(result, "%DESCRIPTION%", fmt.Sprintf("%#v", description))

	nowConstructor := fmt.Sprintf("time.Date(%d, %d, %d, %d, %d, %d, 0, time.UTC)", now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second())
	result = strings.ReplaceAll(result, "%DATE%", nowConstructor)

	safeVersion := strings.ReplaceAll(types.MigrationVersion(now).String(), ":", "")
	filename := fmt.Sprintf("%v_%v.go", safeVersion, name)
	path := filepath.Join(dir, filename)

	err := os.WriteFile(path, []byte(result), 0644)
	if err != nil {
		return "", oops.New(err, "failed to write migration file")
	}

	return path, nil
}

package migration

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestApplyEmbeddedIsIdempotent(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, ApplyEmbedded(db))
	require.NoError(t, ApplyEmbedded(db))

	for _, table := range []string{"canonical_shows", "show_mappings", "report_runs", "report_entries"} {
		require.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (id INT);\n\n  CREATE INDEX b ON a (id);\n")
	require.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE INDEX b ON a (id)"}, stmts)
}

package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ckr3453/db-backup4j/internal/model"
)

func TestApply_ExcludeSystemTables(t *testing.T) {
	// ListTables is already scoped to one schema, so migration-tool
	// tracking tables show up as bare names alongside ordinary ones.
	tables := []string{"users", "orders", "flyway_schema_history", "__diesel_schema_migrations"}

	kept, err := Apply(model.DialectMySQL, "app", tables, model.TableFilter{ExcludeSystemTables: true})
	require.NoError(t, err)
	require.Equal(t, []string{"orders", "users"}, kept)
}

func TestApply_IncludeThenExcludePrecedence(t *testing.T) {
	tables := []string{"users", "user_sessions", "orders"}

	kept, err := Apply(model.DialectMySQL, "app", tables, model.TableFilter{
		IncludePatterns: []string{"user*"},
		ExcludePatterns: []string{"user_sessions"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"users"}, kept)
}

func TestApply_NoIncludePatternsKeepsAll(t *testing.T) {
	tables := []string{"b", "a", "c"}

	kept, err := Apply(model.DialectMySQL, "app", tables, model.TableFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, kept, "result is sorted for deterministic dump order")
}

func TestApply_PostgresMetadataTablesExcluded(t *testing.T) {
	tables := []string{"spatial_ref_sys", "geometry_columns", "widgets"}

	kept, err := Apply(model.DialectPostgreSQL, "public", tables, model.TableFilter{ExcludeSystemTables: true})
	require.NoError(t, err)
	require.Equal(t, []string{"widgets"}, kept)
}

func TestApply_QuestionMarkMatchesSingleChar(t *testing.T) {
	tables := []string{"v1", "v2", "v10"}

	kept, err := Apply(model.DialectMySQL, "app", tables, model.TableFilter{IncludePatterns: []string{"v?"}})
	require.NoError(t, err)
	require.Equal(t, []string{"v1", "v2"}, kept)
}

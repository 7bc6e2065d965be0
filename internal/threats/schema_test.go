package threats

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogColumnsExistInSchema(t *testing.T) {
	raw, err := os.ReadFile("../../scripts/schema.sql")
	require.NoError(t, err)

	cols := map[string]bool{}
	inTable := false
	for _, line := range strings.Split(string(raw), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "CREATE TABLE IF NOT EXISTS threat_logs (") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		if strings.HasPrefix(trimmed, ");") {
			break
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "CONSTRAINT") || strings.HasPrefix(trimmed, "--") {
			continue
		}
		if fields := strings.Fields(trimmed); len(fields) > 0 {
			cols[fields[0]] = true
		}
	}
	require.NotEmpty(t, cols, "threat_logs not found in scripts/schema.sql")

	for _, col := range strings.Split(logColumns, ", ") {
		require.True(t, cols[col], "threat_logs.%s is selected by the repository but missing from scripts/schema.sql", col)
	}
}

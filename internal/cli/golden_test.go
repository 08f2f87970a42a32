package cli

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// Golden tests pin the CLI's wire output. Regenerate with:
//
//	go test ./internal/cli -run TestLs_Golden -update
func TestLs_Golden(t *testing.T) {
	db := testDB(t)
	for _, name := range []string{"beta", "alpha"} {
		_, err := execute(t, "put", name, `{"k":"v"}`, "--db", db)
		require.NoError(t, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)

	out, err := execute(t, "ls", "--db", db, "--format", "json")
	require.NoError(t, err)
	g.Assert(t, "ls_json", []byte(out))

	out, err = execute(t, "ls", "--db", db)
	require.NoError(t, err)
	g.Assert(t, "ls_text", []byte(out))
}

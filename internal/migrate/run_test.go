package migrate

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreOrdered(t *testing.T) {
	got, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "0001_audit_events", got[0].Version)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Version, got[i].Version)
	}
}

func TestLoadSkipsNonSQL(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_b.sql":   {Data: []byte("SELECT 2")},
		"m/0001_a.sql":   {Data: []byte("SELECT 1")},
		"m/README.md":    {Data: []byte("notes")},
		"m/nested/x.sql": {Data: []byte("SELECT 3")},
	}
	got, err := load(fsys, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "0001_a", got[0].Version)
	assert.Equal(t, "m/0001_a.sql", got[0].file)
	assert.Equal(t, "0002_b", got[1].Version)
}

func TestStatusPending(t *testing.T) {
	assert.True(t, Status{Version: "0001"}.Pending())
}

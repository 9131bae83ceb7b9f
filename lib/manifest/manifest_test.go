package manifest

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	data := []byte(`
# deps for the rollup job
requests ==2.31.0
google-cloud-storage >=2.10, <3

urllib3
`)
	m, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, m.Entries, 3)

	assert.Equal(t, "requests", m.Entries[0].Name)
	assert.Equal(t, "google-cloud-storage", m.Entries[1].Name)
	assert.Equal(t, "urllib3", m.Entries[2].Name)
	assert.Equal(t, "*", m.Entries[2].Raw)
	assert.NotEmpty(t, m.Hash())
}

func TestParse_GluedOperator(t *testing.T) {
	m, err := Parse([]byte("requests==2.31.0\n"))
	require.NoError(t, err)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, "requests", m.Entries[0].Name)
	assert.True(t, m.Entries[0].Constraint.Check(mustVersion(t, "2.31.0")))
	assert.False(t, m.Entries[0].Constraint.Check(mustVersion(t, "2.30.0")))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"only comments", "# nothing\n\n"},
		{"bad name", "re quests ==1.0\n"},
		{"bad constraint", "requests ==not-a-version\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestHash_ContentOnly(t *testing.T) {
	a, err := Parse([]byte("requests ==2.31.0\n"))
	require.NoError(t, err)
	b, err := Parse([]byte("requests ==2.31.0\n"))
	require.NoError(t, err)
	c, err := Parse([]byte("requests ==2.32.0\n"))
	require.NoError(t, err)

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestResolve(t *testing.T) {
	index := StaticIndex{
		"requests":             {"2.30.0", "2.31.0", "2.32.1"},
		"google-cloud-storage": {"2.9.0", "2.14.0", "3.0.0"},
	}

	m, err := Parse([]byte("requests >=2.31\ngoogle-cloud-storage >=2.10, <3\n"))
	require.NoError(t, err)

	locked, err := m.Resolve(index)
	require.NoError(t, err)
	require.Len(t, locked, 2)

	// Sorted by name, pinned to the highest satisfying version.
	assert.Equal(t, "google-cloud-storage", locked[0].Name)
	assert.Equal(t, "2.14.0", locked[0].Version)
	assert.Equal(t, "requests", locked[1].Name)
	assert.Equal(t, "2.32.1", locked[1].Version)
}

func TestResolve_Unresolvable(t *testing.T) {
	index := StaticIndex{"requests": {"2.30.0"}}

	m, err := Parse([]byte("requests >=9.0\n"))
	require.NoError(t, err)

	_, err = m.Resolve(index)
	assert.ErrorIs(t, err, ErrUnresolvable)
}

func TestResolve_UnknownPackage(t *testing.T) {
	m, err := Parse([]byte("no-such-package ==1.0.0\n"))
	require.NoError(t, err)

	_, err = m.Resolve(StaticIndex{})
	assert.ErrorIs(t, err, ErrUnresolvable)
}

func mustVersion(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.NewVersion(s)
	require.NoError(t, err)
	return v
}

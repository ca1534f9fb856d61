package corpus

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.db")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestPutIgnoresDuplicates(t *testing.T) {
	s, _ := open(t)
	defer s.Close()

	prog := ProgramID([]byte{0x00})
	e := Entry{
		Program:    prog,
		Key:        "calldata[0] == 0",
		Calldata:   []byte{0},
		Predicates: []string{"calldata[0] == 0"},
		Branches:   []uint64{4},
		Status:     "ok",
	}
	added, err := s.Put(e)
	require.NoError(t, err)
	assert.True(t, added)

	dup := e
	dup.Calldata = []byte{0, 1}
	added, err = s.Put(dup)
	require.NoError(t, err)
	assert.False(t, added)

	// Same key for another program is a different path.
	other := e
	other.Program = ProgramID([]byte{0x01})
	added, err = s.Put(other)
	require.NoError(t, err)
	assert.True(t, added)

	entries, err := s.List(prog)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, e, entries[0])

	all, err := s.List("")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestReopen(t *testing.T) {
	s, path := open(t)
	prog := ProgramID(nil)
	for _, key := range []string{"a", "b", "c"} {
		_, err := s.Put(Entry{Program: prog, Key: key, Calldata: []byte(key), Status: "ok"})
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	entries, err := s.List(prog)
	require.NoError(t, err)
	var keys []string
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestPayloadIsCanonical(t *testing.T) {
	p := payload{Predicates: []string{"x != 0"}, Branches: []uint64{1, 2}, Status: "ok"}
	a, err := encMode.Marshal(p)
	require.NoError(t, err)
	b, err := encMode.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestProgramID(t *testing.T) {
	assert.Len(t, ProgramID([]byte{1, 2, 3}), 64)
	assert.NotEqual(t, ProgramID([]byte{1}), ProgramID([]byte{2}))
}

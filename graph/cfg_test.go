package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var branchy = []byte{
	0x60, 0x00, // 0: PUSH1 0
	0x35,       // 2: CALLDATALOAD
	0x60, 0x08, // 3: PUSH1 8
	0x57,       // 5: JUMPI
	0x00,       // 6: STOP
	0xfe,       // 7: INVALID
	0x5b,       // 8: JUMPDEST
	0x60, 0x00, // 9: PUSH1 0
	0x56,       // 11: JUMP
	0x60, 0x00, // 12: PUSH1 0
	0x35, // 14: CALLDATALOAD
	0x56, // 15: JUMP
}

func TestBuild(t *testing.T) {
	g := Build(branchy)
	want := []*Block{
		{Start: 0, End: 6, Ops: []string{"PUSH1 0x00", "CALLDATALOAD", "PUSH1 0x08", "JUMPI"}, Succs: []uint64{6, 8}},
		{Start: 6, End: 7, Ops: []string{"STOP"}},
		{Start: 7, End: 8, Ops: []string{"INVALID"}},
		// pc 0 is not a JUMPDEST
		{Start: 8, End: 12, Ops: []string{"JUMPDEST", "PUSH1 0x00", "JUMP"}},
		{Start: 12, End: 16, Ops: []string{"PUSH1 0x00", "CALLDATALOAD", "JUMP"}, Dynamic: true},
	}
	assert.Equal(t, want, g.Blocks)
}

func TestBuildFallthrough(t *testing.T) {
	g := Build([]byte{0x60, 0x01, 0x5b, 0x0c, 0x61, 0xff})
	require.Len(t, g.Blocks, 3)
	assert.Equal(t, []uint64{2}, g.Blocks[0].Succs)
	assert.Equal(t, []string{"JUMPDEST", "0x0c"}, g.Blocks[1].Ops)
	// truncated push data is zero padded and the block ends with the code
	assert.Equal(t, &Block{Start: 4, End: 6, Ops: []string{"PUSH2 0xff00"}}, g.Blocks[2])
}

func TestBuildEmpty(t *testing.T) {
	assert.Empty(t, Build(nil).Blocks)
}

func TestBlock(t *testing.T) {
	g := Build(branchy)
	for pc, start := range map[uint64]uint64{0: 0, 3: 0, 5: 0, 6: 6, 9: 8, 11: 8, 15: 12} {
		b := g.Block(pc)
		require.NotNil(t, b, "pc %d", pc)
		assert.Equal(t, start, b.Start, "pc %d", pc)
	}
	assert.Nil(t, g.Block(16))
}

func TestCoverage(t *testing.T) {
	g := Build(branchy)
	covered, total := g.Coverage(map[uint64]struct{}{0: {}, 2: {}, 5: {}, 6: {}, 100: {}})
	assert.Equal(t, 2, covered)
	assert.Equal(t, 5, total)
}

func TestYAML(t *testing.T) {
	data, err := Build(branchy).YAML()
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "succs: [6, 8]")
	assert.Contains(t, out, "- start: 12")
	assert.Contains(t, out, "dynamic: true")
}

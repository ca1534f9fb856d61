// Package graph splits bytecode into basic blocks and links them by the
// jumps that can be resolved without running the program.
package graph

import (
	"fmt"
	"slices"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"slava0135/symevm/machine"
)

type Block struct {
	Start uint64 `yaml:"start"`
	// End is one past the last byte of the block.
	End   uint64   `yaml:"end"`
	Ops   []string `yaml:"ops"`
	Succs []uint64 `yaml:"succs,flow,omitempty"`
	// Dynamic marks a jump whose target is not a PUSH right before it.
	Dynamic bool `yaml:"dynamic,omitempty"`
}

type Graph struct {
	Blocks []*Block `yaml:"blocks"`
}

type instr struct {
	pc   uint64
	op   machine.OpCode
	data []byte
}

func (in instr) String() string {
	if in.op.IsPush() {
		return fmt.Sprintf("%s 0x%x", in.op, in.data)
	}
	if !in.op.Defined() {
		return fmt.Sprintf("0x%02x", byte(in.op))
	}
	return in.op.String()
}

func decode(code []byte) []instr {
	var instrs []instr
	for pc := 0; pc < len(code); pc++ {
		in := instr{pc: uint64(pc), op: machine.OpCode(code[pc])}
		if n := in.op.PushSize(); n > 0 {
			data := make([]byte, n)
			copy(data, code[min(pc+1, len(code)):min(pc+1+n, len(code))])
			in.data = data
			pc += n
		}
		instrs = append(instrs, in)
	}
	return instrs
}

func terminates(op machine.OpCode) bool {
	switch op {
	case machine.STOP, machine.JUMP, machine.JUMPI, machine.RETURN, machine.REVERT, machine.INVALID:
		return true
	}
	return !op.Defined()
}

func Build(code []byte) *Graph {
	instrs := decode(code)
	dests := make(map[uint64]struct{})
	for _, in := range instrs {
		if in.op == machine.JUMPDEST {
			dests[in.pc] = struct{}{}
		}
	}
	g := &Graph{}
	var cur *Block
	for i, in := range instrs {
		if cur == nil || in.op == machine.JUMPDEST {
			cur = &Block{Start: in.pc}
			g.Blocks = append(g.Blocks, cur)
		}
		cur.Ops = append(cur.Ops, in.String())
		cur.End = min(in.pc+1+uint64(in.op.PushSize()), uint64(len(code)))

		if in.op == machine.JUMP || in.op == machine.JUMPI {
			if prev := instrs[max(i-1, 0)]; len(cur.Ops) > 1 && prev.op.IsPush() {
				var dest uint256.Int
				dest.SetBytes(prev.data)
				if _, ok := dests[dest.Uint64()]; ok && dest.IsUint64() {
					cur.Succs = append(cur.Succs, dest.Uint64())
				}
			} else {
				cur.Dynamic = true
			}
		}
		switch {
		case terminates(in.op):
			if in.op == machine.JUMPI && i+1 < len(instrs) {
				cur.Succs = append(cur.Succs, instrs[i+1].pc)
			}
			cur = nil
		case i+1 < len(instrs) && instrs[i+1].op == machine.JUMPDEST:
			cur.Succs = append(cur.Succs, instrs[i+1].pc)
		}
	}
	for _, b := range g.Blocks {
		slices.Sort(b.Succs)
		b.Succs = slices.Compact(b.Succs)
	}
	return g
}

// Block returns the block holding pc, or nil.
func (g *Graph) Block(pc uint64) *Block {
	i, found := slices.BinarySearchFunc(g.Blocks, pc, func(b *Block, pc uint64) int {
		switch {
		case b.End <= pc:
			return -1
		case b.Start > pc:
			return 1
		}
		return 0
	})
	if !found {
		return nil
	}
	return g.Blocks[i]
}

// Coverage counts the blocks holding at least one of the visited pcs.
func (g *Graph) Coverage(visited map[uint64]struct{}) (covered, total int) {
	hit := make(map[*Block]struct{})
	for pc := range visited {
		if b := g.Block(pc); b != nil {
			hit[b] = struct{}{}
		}
	}
	return len(hit), len(g.Blocks)
}

func (g *Graph) YAML() ([]byte, error) {
	return yaml.Marshal(g)
}

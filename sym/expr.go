package sym

import (
	"fmt"

	"github.com/holiman/uint256"
)

// WordSize is the width of a machine word in bytes.
const WordSize = 32

// Expr is a 256-bit value expression. Trees are immutable and acyclic; a node
// never changes after construction so subtrees may be shared freely.
type Expr interface {
	fmt.Stringer

	// Eval computes the expression with every input taken from calldata.
	// Bytes past the end of calldata read as zero.
	Eval(calldata []byte) uint256.Int
	// ScanInputs adds every calldata offset the expression depends on.
	ScanInputs(offsets map[int]struct{})

	expr()
}

type Base struct {
	Word uint256.Int
}

// Input is calldata[Offset:Offset+Size] read big-endian and zero-extended to
// a word.
type Input struct {
	Offset int
	Size   int
}

type BinOp struct {
	Op BinaryOp
	X  Expr
	Y  Expr
}

type UnOp struct {
	Op UnaryOp
	X  Expr
}

func NewBase(x uint64) Base {
	return Base{Word: *uint256.NewInt(x)}
}

func NewInput(offset, size int) Input {
	if size < 1 || size > WordSize {
		panic(fmt.Sprintf("sym: input size %d out of range", size))
	}
	if offset < 0 {
		panic(fmt.Sprintf("sym: negative input offset %d", offset))
	}
	return Input{Offset: offset, Size: size}
}

// InputByte is the single calldata byte at offset.
func InputByte(offset int) Input {
	return NewInput(offset, 1)
}

// InputWord is the 32-byte word CALLDATALOAD reads at offset.
func InputWord(offset int) Input {
	return NewInput(offset, WordSize)
}

func (Base) expr()  {}
func (Input) expr() {}
func (BinOp) expr() {}
func (UnOp) expr()  {}

func (b Base) String() string {
	return b.Word.Hex()
}

func (b Base) Eval([]byte) uint256.Int {
	return b.Word
}

func (Base) ScanInputs(map[int]struct{}) {}

func (in Input) String() string {
	if in.Size == 1 {
		return fmt.Sprintf("calldata[%d]", in.Offset)
	}
	return fmt.Sprintf("calldata[%d:%d]", in.Offset, in.Offset+in.Size)
}

func (in Input) Eval(calldata []byte) uint256.Int {
	return ReadCalldata(calldata, in.Offset, in.Size)
}

func (in Input) ScanInputs(offsets map[int]struct{}) {
	for i := in.Offset; i < in.Offset+in.Size; i++ {
		offsets[i] = struct{}{}
	}
}

func (bo BinOp) String() string {
	return fmt.Sprintf("(%s %s %s)", bo.X, bo.Op, bo.Y)
}

func (bo BinOp) Eval(calldata []byte) uint256.Int {
	x := bo.X.Eval(calldata)
	y := bo.Y.Eval(calldata)
	var z uint256.Int
	bo.Op.Apply(&z, &x, &y)
	return z
}

func (bo BinOp) ScanInputs(offsets map[int]struct{}) {
	bo.X.ScanInputs(offsets)
	bo.Y.ScanInputs(offsets)
}

func (uo UnOp) String() string {
	switch uo.Op {
	case Not:
		return fmt.Sprintf("~%s", uo.X)
	default:
		return fmt.Sprintf("%s(%s)", uo.Op, uo.X)
	}
}

func (uo UnOp) Eval(calldata []byte) uint256.Int {
	x := uo.X.Eval(calldata)
	var z uint256.Int
	uo.Op.Apply(&z, &x)
	return z
}

func (uo UnOp) ScanInputs(offsets map[int]struct{}) {
	uo.X.ScanInputs(offsets)
}

// ReadCalldata reads size bytes at offset as a big-endian word, padding with
// zeros past the end of calldata.
func ReadCalldata(calldata []byte, offset, size int) uint256.Int {
	var buf [WordSize]byte
	for i := 0; i < size; i++ {
		if pos := offset + i; pos >= 0 && pos < len(calldata) {
			buf[WordSize-size+i] = calldata[pos]
		}
	}
	var w uint256.Int
	w.SetBytes32(buf[:])
	return w
}

package machine

import "fmt"

// OpCode is a single-byte instruction identifier. Values follow the EVM.
type OpCode byte

const (
	STOP OpCode = 0x00
	ADD  OpCode = 0x01
	MUL  OpCode = 0x02
	SUB  OpCode = 0x03
	DIV  OpCode = 0x04
	MOD  OpCode = 0x06

	LT     OpCode = 0x10
	GT     OpCode = 0x11
	EQ     OpCode = 0x14
	ISZERO OpCode = 0x15
	AND    OpCode = 0x16
	OR     OpCode = 0x17
	XOR    OpCode = 0x18
	NOT    OpCode = 0x19

	CALLDATALOAD OpCode = 0x35
	CALLDATASIZE OpCode = 0x36

	POP      OpCode = 0x50
	JUMP     OpCode = 0x56
	JUMPI    OpCode = 0x57
	PC       OpCode = 0x58
	JUMPDEST OpCode = 0x5b

	PUSH1  OpCode = 0x60
	PUSH32 OpCode = 0x7f
	DUP1   OpCode = 0x80
	DUP16  OpCode = 0x8f
	SWAP1  OpCode = 0x90
	SWAP16 OpCode = 0x9f

	RETURN  OpCode = 0xf3
	REVERT  OpCode = 0xfd
	INVALID OpCode = 0xfe
)

var opCodeToString = map[OpCode]string{
	STOP:         "STOP",
	ADD:          "ADD",
	MUL:          "MUL",
	SUB:          "SUB",
	DIV:          "DIV",
	MOD:          "MOD",
	LT:           "LT",
	GT:           "GT",
	EQ:           "EQ",
	ISZERO:       "ISZERO",
	AND:          "AND",
	OR:           "OR",
	XOR:          "XOR",
	NOT:          "NOT",
	CALLDATALOAD: "CALLDATALOAD",
	CALLDATASIZE: "CALLDATASIZE",
	POP:          "POP",
	JUMP:         "JUMP",
	JUMPI:        "JUMPI",
	PC:           "PC",
	JUMPDEST:     "JUMPDEST",
	RETURN:       "RETURN",
	REVERT:       "REVERT",
	INVALID:      "INVALID",
}

var stringToOp = make(map[string]OpCode)

func init() {
	for i := 0; i < 32; i++ {
		opCodeToString[PUSH1+OpCode(i)] = fmt.Sprintf("PUSH%d", i+1)
	}
	for i := 0; i < 16; i++ {
		opCodeToString[DUP1+OpCode(i)] = fmt.Sprintf("DUP%d", i+1)
		opCodeToString[SWAP1+OpCode(i)] = fmt.Sprintf("SWAP%d", i+1)
	}
	for op, name := range opCodeToString {
		stringToOp[name] = op
	}
}

func (op OpCode) String() string {
	if s, ok := opCodeToString[op]; ok {
		return s
	}
	return fmt.Sprintf("opcode 0x%02x not defined", byte(op))
}

// Defined reports whether the core instruction table knows op.
func (op OpCode) Defined() bool {
	_, ok := opCodeToString[op]
	return ok
}

func (op OpCode) IsPush() bool {
	return op >= PUSH1 && op <= PUSH32
}

// PushSize is the number of immediate bytes following a PUSH opcode.
func (op OpCode) PushSize() int {
	if !op.IsPush() {
		return 0
	}
	return int(op-PUSH1) + 1
}

// StringToOp looks up an opcode by mnemonic.
func StringToOp(name string) (OpCode, bool) {
	op, ok := stringToOp[name]
	return op, ok
}

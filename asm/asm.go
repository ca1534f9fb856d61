// Package asm translates between mnemonic text and machine bytecode.
package asm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"slava0135/symevm/machine"
)

var (
	ErrUnknownMnemonic = errors.New("unknown mnemonic")
	ErrBadLiteral      = errors.New("bad literal")
	ErrUndefinedLabel  = errors.New("undefined label")
	ErrDuplicateLabel  = errors.New("duplicate label")
	ErrShortPush       = errors.New("push data runs past the end of code")
)

// labelRefSize is the push width used for a bare @label.
const labelRefSize = 2

type item struct {
	op    machine.OpCode
	data  []byte
	label string
}

func (it item) size() int {
	return 1 + it.op.PushSize()
}

// Notation:
//
//	ADD         mnemonic, case-insensitive
//	PUSH2 0x10  push with an explicit width
//	42, 0x2a    push with the smallest width that fits
//	loop:       label definition, emits nothing
//	@loop       PUSH2 of the label address
//	PUSH1 @loop label address in an explicit width
//	; text      comment up to the end of the line
func Assemble(src string) ([]byte, error) {
	var (
		items  []item
		labels = make(map[string]int)
		pos    int
	)
	tokens := tokenize(src)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		var it item
		switch {
		case strings.HasSuffix(tok, ":"):
			name := strings.TrimSuffix(tok, ":")
			if name == "" {
				return nil, errors.Wrap(ErrBadLiteral, "empty label name")
			}
			if _, ok := labels[name]; ok {
				return nil, errors.Wrapf(ErrDuplicateLabel, "'%s'", name)
			}
			labels[name] = pos
			continue
		case strings.HasPrefix(tok, "@"):
			if tok == "@" {
				return nil, errors.Wrap(ErrUndefinedLabel, "empty label reference")
			}
			it = item{op: machine.PUSH1 + labelRefSize - 1, label: tok[1:]}
		case isLiteral(tok):
			w, err := parseLiteral(tok)
			if err != nil {
				return nil, err
			}
			it = pushItem(w, max(w.ByteLen(), 1))
		default:
			op, ok := machine.StringToOp(strings.ToUpper(tok))
			if !ok {
				return nil, errors.Wrapf(ErrUnknownMnemonic, "'%s'", tok)
			}
			it = item{op: op}
			if op.IsPush() {
				if i+1 >= len(tokens) {
					return nil, errors.Wrapf(ErrBadLiteral, "%s without operand", op)
				}
				i++
				arg := tokens[i]
				if strings.HasPrefix(arg, "@") {
					if arg == "@" {
						return nil, errors.Wrap(ErrUndefinedLabel, "empty label reference")
					}
					it.label = arg[1:]
					break
				}
				w, err := parseLiteral(arg)
				if err != nil {
					return nil, err
				}
				if w.ByteLen() > op.PushSize() {
					return nil, errors.Wrapf(ErrBadLiteral, "'%s' does not fit %s", arg, op)
				}
				it = pushItem(w, op.PushSize())
			}
		}
		items = append(items, it)
		pos += it.size()
	}

	code := make([]byte, 0, pos)
	for _, it := range items {
		if it.label != "" {
			addr, ok := labels[it.label]
			if !ok {
				return nil, errors.Wrapf(ErrUndefinedLabel, "'%s'", it.label)
			}
			w := uint256.NewInt(uint64(addr))
			if w.ByteLen() > it.op.PushSize() {
				return nil, errors.Wrapf(ErrBadLiteral, "label '%s' at %d does not fit %s", it.label, addr, it.op)
			}
			it = pushItem(w, it.op.PushSize())
		}
		code = append(code, byte(it.op))
		code = append(code, it.data...)
	}
	return code, nil
}

// Disassemble prints one token per instruction; bytes that are not opcodes
// come out as hex literals.
func Disassemble(code []byte) (string, error) {
	var result []string
	for pc := 0; pc < len(code); pc++ {
		op := machine.OpCode(code[pc])
		switch {
		case op.IsPush():
			n := op.PushSize()
			if pc+n >= len(code) {
				return "", errors.Wrapf(ErrShortPush, "%s at %d", op, pc)
			}
			result = append(result, fmt.Sprintf("%s 0x%x", op, code[pc+1:pc+1+n]))
			pc += n
		case op.Defined():
			result = append(result, op.String())
		default:
			result = append(result, fmt.Sprintf("0x%02x", byte(op)))
		}
	}
	return strings.Join(result, " "), nil
}

func tokenize(src string) []string {
	var tokens []string
	for _, line := range strings.Split(src, "\n") {
		if i := strings.Index(line, ";"); i >= 0 {
			line = line[:i]
		}
		tokens = append(tokens, strings.Fields(line)...)
	}
	return tokens
}

func isLiteral(tok string) bool {
	return tok[0] >= '0' && tok[0] <= '9'
}

func parseLiteral(tok string) (*uint256.Int, error) {
	b, ok := new(big.Int).SetString(tok, 0)
	if !ok || b.Sign() < 0 {
		return nil, errors.Wrapf(ErrBadLiteral, "'%s'", tok)
	}
	w, overflow := uint256.FromBig(b)
	if overflow {
		return nil, errors.Wrapf(ErrBadLiteral, "'%s' exceeds a word", tok)
	}
	return w, nil
}

func pushItem(w *uint256.Int, size int) item {
	b := w.Bytes32()
	return item{
		op:   machine.PUSH1 + machine.OpCode(size-1),
		data: b[32-size:],
	}
}

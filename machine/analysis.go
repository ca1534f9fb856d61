package machine

// bitvec marks the positions of valid jump destinations.
type bitvec []byte

func (bits bitvec) set(pos uint64) {
	bits[pos/8] |= 1 << (pos % 8)
}

func (bits bitvec) isSet(pos uint64) bool {
	if pos/8 >= uint64(len(bits)) {
		return false
	}
	return bits[pos/8]&(1<<(pos%8)) != 0
}

// analyzeJumpdests finds every JUMPDEST byte that is not push data.
func analyzeJumpdests(code []byte) bitvec {
	bits := make(bitvec, len(code)/8+1)
	for pc := uint64(0); pc < uint64(len(code)); pc++ {
		op := OpCode(code[pc])
		switch {
		case op == JUMPDEST:
			bits.set(pc)
		case op.IsPush():
			pc += uint64(op.PushSize())
		}
	}
	return bits
}

func (m *Machine) validJumpdest(dest uint64) bool {
	if dest >= uint64(len(m.code)) {
		return false
	}
	return m.jumpdests.isSet(dest)
}

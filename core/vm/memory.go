package vm

import (
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// maxMemoryOffset bounds addressable memory. Anything beyond it can never be
// paid for and is treated as out of gas.
const maxMemoryOffset = 1 << 32

// Memory is the word-addressed linear memory of a single frame.
type Memory struct {
	store       []byte
	lastGasCost uint64
}

func newMemory() *Memory {
	return &Memory{}
}

// Data returns the backing slice. Callers must not modify it.
func (m *Memory) Data() []byte { return m.store }

func (m *Memory) Len() int { return len(m.store) }

// Set copies value into memory at offset. The memory must already be large
// enough.
func (m *Memory) Set(offset uint64, value []byte) {
	if len(value) == 0 {
		return
	}
	copy(m.store[offset:offset+uint64(len(value))], value)
}

// Set32 writes val as a 32 byte big-endian word at offset.
func (m *Memory) Set32(offset uint64, val *uint256.Int) {
	b := val.Bytes32()
	copy(m.store[offset:offset+32], b[:])
}

// GetCopy returns a copy of size bytes from offset.
func (m *Memory) GetCopy(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	cpy := make([]byte, size)
	copy(cpy, m.store[offset:offset+size])
	return cpy
}

// resize grows memory to size bytes, which must be a multiple of 32.
func (m *Memory) resize(size uint64) {
	if uint64(len(m.store)) < size {
		m.store = append(m.store, make([]byte, size-uint64(len(m.store)))...)
	}
}

func toWordSize(size uint64) uint64 {
	if size > ^uint64(0)-31 {
		return ^uint64(0)/32 + 1
	}
	return (size + 31) / 32
}

// expansionCost returns the gas required to grow memory to newSize bytes,
// relative to what has already been paid.
func (m *Memory) expansionCost(newSize uint64) uint64 {
	words := toWordSize(newSize)
	total := words*params.MemoryGas + words*words/params.QuadCoeffDiv
	if total <= m.lastGasCost {
		return 0
	}
	cost := total - m.lastGasCost
	m.lastGasCost = total
	return cost
}

// memoryRange validates an (offset, size) pair popped from the stack.
func memoryRange(offset, size *uint256.Int) (uint64, uint64, bool) {
	if size.IsZero() {
		return 0, 0, true
	}
	if !offset.IsUint64() || !size.IsUint64() {
		return 0, 0, false
	}
	o, s := offset.Uint64(), size.Uint64()
	if o >= maxMemoryOffset || s >= maxMemoryOffset {
		return 0, 0, false
	}
	return o, s, true
}

package vm

import (
	"github.com/ethereum/go-ethereum/common"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
)

// Contract is the code and call context a frame executes.
type Contract struct {
	Input    []byte
	Code     []byte
	CodeHash common.Hash
	Address  common.Address
	Caller   common.Address
	Value    uint256.Int

	jumpdests []bool
}

// NewContract builds a contract and analyses its jump destinations.
func NewContract(input, code []byte, codeHash common.Hash, address, caller common.Address, value *uint256.Int) *Contract {
	c := &Contract{
		Input:    input,
		Code:     code,
		CodeHash: codeHash,
		Address:  address,
		Caller:   caller,
	}
	if value != nil {
		c.Value.Set(value)
	}
	c.jumpdests = analyseJumpdests(code)
	return c
}

// analyseJumpdests marks every JUMPDEST byte that is not push data.
func analyseJumpdests(code []byte) []bool {
	dests := make([]bool, len(code))
	for pc := 0; pc < len(code); pc++ {
		op := gethvm.OpCode(code[pc])
		switch {
		case op == gethvm.JUMPDEST:
			dests[pc] = true
		case op >= gethvm.PUSH1 && op <= gethvm.PUSH32:
			pc += int(op - gethvm.PUSH1 + 1)
		}
	}
	return dests
}

func (c *Contract) validJumpdest(dest *uint256.Int) bool {
	if !dest.IsUint64() || dest.Uint64() >= uint64(len(c.Code)) {
		return false
	}
	return c.jumpdests[dest.Uint64()]
}

// opAt returns the opcode at pc. Reading past the end of the code yields STOP.
func (c *Contract) opAt(pc uint64) byte {
	if pc < uint64(len(c.Code)) {
		return c.Code[pc]
	}
	return byte(gethvm.STOP)
}

package inspector

import (
	"bytes"
	"slices"

	"github.com/clydemeng/evminspect/core/vm"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/core/types"
)

// AccessListInspector collects the accounts and storage slots an execution
// touches into an EIP-2930 access list.
type AccessListInspector struct {
	NoOpInspector

	excluded mapset.Set[common.Address]
	list     map[common.Address]mapset.Set[common.Hash]
}

// NewAccessListInspector returns an inspector that never lists the sender,
// the recipient or any address in precompiles, since those are warm anyway.
func NewAccessListInspector(from, to common.Address, precompiles []common.Address) *AccessListInspector {
	excluded := mapset.NewThreadUnsafeSet(precompiles...)
	excluded.Add(from)
	excluded.Add(to)
	return &AccessListInspector{
		excluded: excluded,
		list:     make(map[common.Address]mapset.Set[common.Hash]),
	}
}

func (a *AccessListInspector) addAddress(addr common.Address) {
	if a.excluded.Contains(addr) {
		return
	}
	if _, ok := a.list[addr]; !ok {
		a.list[addr] = mapset.NewThreadUnsafeSet[common.Hash]()
	}
}

func (a *AccessListInspector) addSlot(addr common.Address, slot common.Hash) {
	a.addAddress(addr)
	if slots, ok := a.list[addr]; ok {
		slots.Add(slot)
	}
}

func (a *AccessListInspector) Step(in *vm.Interpreter, _ *vm.Context) {
	stack := in.Stack
	switch op := gethvm.OpCode(in.CurrentOpcode()); op {
	case gethvm.SLOAD, gethvm.SSTORE:
		if stack.Len() >= 1 {
			a.addSlot(in.Contract.Address, common.Hash(stack.Peek(0).Bytes32()))
		}
	case gethvm.BALANCE, gethvm.EXTCODESIZE, gethvm.EXTCODECOPY, gethvm.EXTCODEHASH, gethvm.SELFDESTRUCT:
		if stack.Len() >= 1 {
			a.addAddress(common.Address(stack.Peek(0).Bytes20()))
		}
	case gethvm.CALL, gethvm.STATICCALL, gethvm.DELEGATECALL, gethvm.CALLCODE:
		if stack.Len() >= 2 {
			a.addAddress(common.Address(stack.Peek(1).Bytes20()))
		}
	}
}

// AccessList returns the collected list sorted by address and slot.
func (a *AccessListInspector) AccessList() types.AccessList {
	addrs := make([]common.Address, 0, len(a.list))
	for addr := range a.list {
		addrs = append(addrs, addr)
	}
	slices.SortFunc(addrs, func(x, y common.Address) int { return bytes.Compare(x[:], y[:]) })

	acl := make(types.AccessList, 0, len(addrs))
	for _, addr := range addrs {
		keys := a.list[addr].ToSlice()
		slices.SortFunc(keys, func(x, y common.Hash) int { return bytes.Compare(x[:], y[:]) })
		acl = append(acl, types.AccessTuple{Address: addr, StorageKeys: keys})
	}
	return acl
}

package inspector

import "github.com/clydemeng/evminspect/core/vm"

// NewEVM returns an EVM over db whose handler is instrumented with insp.
func NewEVM(env *vm.Env, db vm.Database, insp Inspector) *vm.EVM {
	evm := vm.NewEVM(env, db)
	Register(evm.Handler, insp)
	return evm
}

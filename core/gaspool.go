package core

import (
	"errors"
	"fmt"
	"math"
)

// ErrGasLimitReached is returned when the block has no room for the gas a
// transaction asks for.
var ErrGasLimitReached = errors.New("gas limit reached")

// GasPool tracks the gas left in a block.
type GasPool uint64

// AddGas makes gas available again.
func (gp *GasPool) AddGas(amount uint64) *GasPool {
	if uint64(*gp) > math.MaxUint64-amount {
		panic("gas pool pushed above uint64")
	}
	*(*uint64)(gp) += amount
	return gp
}

// SubGas deducts amount, failing if the pool cannot cover it.
func (gp *GasPool) SubGas(amount uint64) error {
	if uint64(*gp) < amount {
		return ErrGasLimitReached
	}
	*(*uint64)(gp) -= amount
	return nil
}

// Gas returns the amount of gas remaining in the pool.
func (gp *GasPool) Gas() uint64 { return uint64(*gp) }

func (gp *GasPool) String() string { return fmt.Sprintf("%d", *gp) }

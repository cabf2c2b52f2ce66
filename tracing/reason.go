package tracing

import (
	gethtracing "github.com/ethereum/go-ethereum/core/tracing"
)

// BalanceChangeReason is a description of the reason why a balance was changed.
type BalanceChangeReason int

const (
	BalanceChangeUnspecified BalanceChangeReason = iota
	BalanceChangeTransfer
	BalanceChangeCreateEndowment
	BalanceChangeGasBuy
	BalanceChangeGasRefund
	BalanceChangeReward
	BalanceChangeSelfdestruct
	BalanceChangeSelfdestructBurn
)

// NonceChangeReason is a description of the reason why a nonce was changed.
type NonceChangeReason int

const (
	NonceChangeUnspecified NonceChangeReason = iota
	NonceChangeTransaction
	NonceChangeContractCreator
	NonceChangeNewContract
)

// String returns a human-readable string for the reason.
func (r BalanceChangeReason) String() string {
	switch r {
	case BalanceChangeUnspecified:
		return "unspecified"
	case BalanceChangeTransfer:
		return "transfer"
	case BalanceChangeCreateEndowment:
		return "create_endowment"
	case BalanceChangeGasBuy:
		return "gas_buy"
	case BalanceChangeGasRefund:
		return "gas_refund"
	case BalanceChangeReward:
		return "reward"
	case BalanceChangeSelfdestruct:
		return "selfdestruct"
	case BalanceChangeSelfdestructBurn:
		return "selfdestruct_burn"
	}
	return "unknown"
}

// ToGeth maps the reason onto the go-ethereum tracing reason used when the
// change is replayed into a StateDB or reported to tracing hooks.
func (r BalanceChangeReason) ToGeth() gethtracing.BalanceChangeReason {
	switch r {
	case BalanceChangeTransfer, BalanceChangeCreateEndowment:
		return gethtracing.BalanceChangeTransfer
	case BalanceChangeGasBuy:
		return gethtracing.BalanceDecreaseGasBuy
	case BalanceChangeGasRefund:
		return gethtracing.BalanceIncreaseGasReturn
	case BalanceChangeReward:
		return gethtracing.BalanceIncreaseRewardTransactionFee
	case BalanceChangeSelfdestruct:
		return gethtracing.BalanceDecreaseSelfdestruct
	case BalanceChangeSelfdestructBurn:
		return gethtracing.BalanceDecreaseSelfdestructBurn
	}
	return gethtracing.BalanceChangeUnspecified
}

// String returns a human-readable string for the reason.
func (r NonceChangeReason) String() string {
	switch r {
	case NonceChangeUnspecified:
		return "unspecified"
	case NonceChangeTransaction:
		return "transaction"
	case NonceChangeContractCreator:
		return "contract_creator"
	case NonceChangeNewContract:
		return "new_contract"
	}
	return "unknown"
}

// ToGeth maps the reason onto the go-ethereum tracing reason.
func (r NonceChangeReason) ToGeth() gethtracing.NonceChangeReason {
	switch r {
	case NonceChangeTransaction:
		return gethtracing.NonceChangeEoACall
	case NonceChangeContractCreator:
		return gethtracing.NonceChangeContractCreator
	case NonceChangeNewContract:
		return gethtracing.NonceChangeNewContract
	}
	return gethtracing.NonceChangeUnspecified
}

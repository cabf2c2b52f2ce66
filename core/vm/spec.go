package vm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

// SpecID identifies the hard fork whose rules the interpreter follows.
type SpecID uint8

const (
	Frontier SpecID = iota
	FrontierThawing
	Homestead
	DAOFork
	Tangerine
	SpuriousDragon
	Byzantium
	Constantinople
	Petersburg
	Istanbul
	MuirGlacier
	Berlin
	London
	ArrowGlacier
	GrayGlacier
	Merge
	Shanghai
	Cancun
	Prague

	Latest = Prague
)

var specNames = map[SpecID]string{
	Frontier:        "Frontier",
	FrontierThawing: "FrontierThawing",
	Homestead:       "Homestead",
	DAOFork:         "DAOFork",
	Tangerine:       "Tangerine",
	SpuriousDragon:  "SpuriousDragon",
	Byzantium:       "Byzantium",
	Constantinople:  "Constantinople",
	Petersburg:      "Petersburg",
	Istanbul:        "Istanbul",
	MuirGlacier:     "MuirGlacier",
	Berlin:          "Berlin",
	London:          "London",
	ArrowGlacier:    "ArrowGlacier",
	GrayGlacier:     "GrayGlacier",
	Merge:           "Merge",
	Shanghai:        "Shanghai",
	Cancun:          "Cancun",
	Prague:          "Prague",
}

func (s SpecID) String() string {
	if name, ok := specNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SpecID(%d)", uint8(s))
}

// Enabled reports whether the rules of fork are active under s.
func (s SpecID) Enabled(fork SpecID) bool { return s >= fork }

// SpecIDFromString parses a fork name as printed by String.
func SpecIDFromString(name string) (SpecID, error) {
	for id, n := range specNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown spec %q", name)
}

// SpecFromChainConfig maps the fork rules active at the given block number and
// timestamp onto a SpecID.
func SpecFromChainConfig(cfg *params.ChainConfig, num uint64, ts uint64) SpecID {
	bn := new(big.Int).SetUint64(num)
	switch {
	case cfg.IsPrague(bn, ts):
		return Prague
	case cfg.IsCancun(bn, ts):
		return Cancun
	case cfg.IsShanghai(bn, ts):
		return Shanghai
	case cfg.IsGrayGlacier(bn):
		return GrayGlacier
	case cfg.IsArrowGlacier(bn):
		return ArrowGlacier
	case cfg.IsLondon(bn):
		return London
	case cfg.IsBerlin(bn):
		return Berlin
	case cfg.IsMuirGlacier(bn):
		return MuirGlacier
	case cfg.IsIstanbul(bn):
		return Istanbul
	case cfg.IsPetersburg(bn):
		return Petersburg
	case cfg.IsConstantinople(bn):
		return Constantinople
	case cfg.IsByzantium(bn):
		return Byzantium
	case cfg.IsEIP158(bn):
		return SpuriousDragon
	case cfg.IsEIP150(bn):
		return Tangerine
	case cfg.IsHomestead(bn):
		return Homestead
	default:
		return Frontier
	}
}

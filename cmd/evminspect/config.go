package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"unicode"

	"github.com/clydemeng/evminspect/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"
)

var dumpConfigCommand = &cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Export configuration values in a TOML format",
	ArgsUsage:   "<dumpfile (optional)>",
	Flags:       runFlags,
	Description: `Export configuration values in TOML format (to stdout by default).`,
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		id := fmt.Sprintf("%s.%s", rt.String(), field)
		if deprecatedConfigFields[id] {
			log.Warn(fmt.Sprintf("Config field '%s' is deprecated and won't have any effect.", id))
			return nil
		}
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

var deprecatedConfigFields = map[string]bool{
	"main.runConfig.Engine": true,
}

type chainConfig struct {
	ChainID uint64
	Fork    string
	// NoNonceCheck and NoBalanceCheck relax transaction validation.
	NoNonceCheck   bool
	NoBalanceCheck bool
}

type runConfig struct {
	Sender   common.Address
	Receiver common.Address
	GasLimit uint64
	GasPrice uint64
	Value    uint64
	// Tracer is one of none, print, eip3155 or gas.
	Tracer string
	Memory bool `toml:",omitempty"`
	Stats  bool `toml:",omitempty"`
}

type evminspectConfig struct {
	Chain chainConfig
	Run   runConfig
}

var defaultConfig = evminspectConfig{
	Chain: chainConfig{ChainID: 1, Fork: vm.Latest.String()},
	Run: runConfig{
		Sender:   common.HexToAddress("0x1000000000000000000000000000000000000001"),
		Receiver: common.HexToAddress("0x2000000000000000000000000000000000000002"),
		GasLimit: 10_000_000,
		Tracer:   "none",
	},
}

// loadConfig reads file into cfg.
func loadConfig(file string, cfg *evminspectConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return decodeConfig(file, f, cfg)
}

func decodeConfig(name string, r io.Reader, cfg *evminspectConfig) error {
	err := tomlSettings.NewDecoder(bufio.NewReader(r)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(name + ", " + err.Error())
	}
	return err
}

// loadBaseConfig merges defaults, the config file and command line flags.
func loadBaseConfig(ctx *cli.Context) (evminspectConfig, error) {
	cfg := defaultConfig
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	applyRunFlags(ctx, &cfg)
	if _, err := vm.SpecIDFromString(cfg.Chain.Fork); err != nil {
		return cfg, err
	}
	switch cfg.Run.Tracer {
	case "none", "print", "eip3155", "gas":
	default:
		return cfg, fmt.Errorf("unknown tracer %q", cfg.Run.Tracer)
	}
	return cfg, nil
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := loadBaseConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	dump.WriteString(comment)
	dump.Write(out)
	return nil
}

var comment = strings.Join([]string{
	"# Note: this config doesn't contain the code to run, pass it with --code.",
	"",
	"",
}, "\n")

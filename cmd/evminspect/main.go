// evminspect executes EVM bytecode on an in-memory state and reports what the
// interpreter did through the inspector of choice.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value: 3,
	}
	noColorFlag = &cli.BoolFlag{
		Name:  "nocolor",
		Usage: "Disable colored output",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "evminspect",
		Usage: "run EVM bytecode under an inspector",
		Flags: []cli.Flag{configFileFlag, verbosityFlag, noColorFlag},
		Commands: []*cli.Command{
			runCommand,
			dumpConfigCommand,
		},
		Before: setupLogging,
	}
}

func setupLogging(ctx *cli.Context) error {
	fd := os.Stderr.Fd()
	useColor := !ctx.Bool(noColorFlag.Name) && os.Getenv("TERM") != "dumb" &&
		(isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
	color.NoColor = !useColor
	output := io.Writer(os.Stderr)
	if useColor {
		output = colorable.NewColorableStderr()
	}
	glogger := log.NewGlogHandler(log.NewTerminalHandler(output, useColor))
	glogger.Verbosity(log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)))
	log.SetDefault(log.NewLogger(glogger))
	return nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

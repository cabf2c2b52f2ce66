package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/clydemeng/evminspect/core/vm"
	"github.com/clydemeng/evminspect/inspector"
	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

var (
	codeFlag = &cli.StringFlag{
		Name:  "code",
		Usage: "EVM bytecode as hex, or @file to read it from a file",
	}
	inputFlag = &cli.StringFlag{
		Name:  "input",
		Usage: "Call data as hex",
	}
	createFlag = &cli.BoolFlag{
		Name:  "create",
		Usage: "Run the code as init code of a contract creation",
	}
	forkFlag = &cli.StringFlag{
		Name:  "fork",
		Usage: "Fork rules to apply, e.g. Shanghai",
	}
	gasFlag = &cli.Uint64Flag{
		Name:  "gas",
		Usage: "Gas limit of the transaction",
	}
	valueFlag = &cli.Uint64Flag{
		Name:  "value",
		Usage: "Value sent with the transaction",
	}
	tracerFlag = &cli.StringFlag{
		Name:  "tracer",
		Usage: "Inspector to run: none, print, eip3155 or gas",
	}
	memoryFlag = &cli.BoolFlag{
		Name:  "trace.memory",
		Usage: "Include memory in eip3155 traces",
	}
	statsFlag = &cli.BoolFlag{
		Name:  "stats",
		Usage: "Print an opcode histogram after the run",
	}
	dumpFlag = &cli.BoolFlag{
		Name:  "dump",
		Usage: "Dump the resulting state",
	}

	runFlags = []cli.Flag{forkFlag, gasFlag, valueFlag, tracerFlag, memoryFlag, statsFlag}

	runCommand = &cli.Command{
		Action:    runCmd,
		Name:      "run",
		Usage:     "Run EVM bytecode",
		ArgsUsage: "<code (optional, hex)>",
		Flags:     append([]cli.Flag{codeFlag, inputFlag, createFlag, dumpFlag}, runFlags...),
		Description: `The run command executes the given code either as the code of the receiver
of a call, or as init code when --create is set.`,
	}
)

func applyRunFlags(ctx *cli.Context, cfg *evminspectConfig) {
	if ctx.IsSet(forkFlag.Name) {
		cfg.Chain.Fork = ctx.String(forkFlag.Name)
	}
	if ctx.IsSet(gasFlag.Name) {
		cfg.Run.GasLimit = ctx.Uint64(gasFlag.Name)
	}
	if ctx.IsSet(valueFlag.Name) {
		cfg.Run.Value = ctx.Uint64(valueFlag.Name)
	}
	if ctx.IsSet(tracerFlag.Name) {
		cfg.Run.Tracer = ctx.String(tracerFlag.Name)
	}
	if ctx.IsSet(memoryFlag.Name) {
		cfg.Run.Memory = ctx.Bool(memoryFlag.Name)
	}
	if ctx.IsSet(statsFlag.Name) {
		cfg.Run.Stats = ctx.Bool(statsFlag.Name)
	}
}

func readCode(ctx *cli.Context) ([]byte, error) {
	src := ctx.String(codeFlag.Name)
	if src == "" {
		src = ctx.Args().First()
	}
	if file, ok := strings.CutPrefix(src, "@"); ok {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		src = string(data)
	}
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("no code given")
	}
	return hexutil.Decode(ensure0x(src))
}

func ensure0x(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}

// runner is one configured execution.
type runner struct {
	cfg    evminspectConfig
	code   []byte
	input  []byte
	create bool
	out    io.Writer
	trace  io.Writer
}

type runOutcome struct {
	ID       uuid.UUID
	Result   *vm.ResultAndState
	Stats    []inspector.OpcodeStat
	Duration time.Duration
}

func (r *runner) env() *vm.Env {
	spec, _ := vm.SpecIDFromString(r.cfg.Chain.Fork)
	env := &vm.Env{
		Cfg: vm.CfgEnv{
			ChainID:             r.cfg.Chain.ChainID,
			Spec:                spec,
			DisableNonceCheck:   r.cfg.Chain.NoNonceCheck,
			DisableBalanceCheck: r.cfg.Chain.NoBalanceCheck,
		},
		Block: vm.BlockEnv{Number: 1, GasLimit: r.cfg.Run.GasLimit, Timestamp: uint64(time.Now().Unix())},
		Tx: vm.TxEnv{
			Caller:   r.cfg.Run.Sender,
			Data:     r.input,
			GasLimit: r.cfg.Run.GasLimit,
		},
	}
	env.Tx.Value.SetUint64(r.cfg.Run.Value)
	env.Tx.GasPrice.SetUint64(r.cfg.Run.GasPrice)
	if r.create {
		env.Tx.Data = append(append([]byte(nil), r.code...), r.input...)
	} else {
		to := r.cfg.Run.Receiver
		env.Tx.To = &to
	}
	return env
}

func (r *runner) inspector() (inspector.Inspector, *inspector.OpcodeCounter) {
	multi := inspector.NewMulti()
	switch r.cfg.Run.Tracer {
	case "print":
		multi.Add(inspector.NewPrintTracer(r.trace))
	case "eip3155":
		multi.Add(inspector.NewEIP3155Tracer(r.trace, r.cfg.Run.Memory))
	case "gas":
		multi.Add(inspector.NewGasInspector())
	}
	var counter *inspector.OpcodeCounter
	if r.cfg.Run.Stats {
		counter = inspector.NewOpcodeCounter()
		multi.Add(counter)
	}
	if multi.Len() == 0 {
		return nil, nil
	}
	return multi, counter
}

func (r *runner) run() (*runOutcome, error) {
	db := vm.NewMemoryDB()
	balance := new(uint256.Int).Mul(uint256.NewInt(r.cfg.Run.GasLimit), uint256.NewInt(r.cfg.Run.GasPrice))
	balance.Add(balance, uint256.NewInt(r.cfg.Run.Value))
	db.SetBalance(r.cfg.Run.Sender, balance)
	if !r.create {
		db.SetCode(r.cfg.Run.Receiver, r.code)
	}

	env := r.env()
	var evm *vm.EVM
	insp, counter := r.inspector()
	if insp != nil {
		evm = inspector.NewEVM(env, db, insp)
	} else {
		evm = vm.NewEVM(env, db)
	}

	out := &runOutcome{ID: uuid.New()}
	log.Debug("Starting run", "id", out.ID, "fork", env.Cfg.Spec, "create", r.create, "tracer", r.cfg.Run.Tracer)
	start := time.Now()
	res, err := evm.Transact()
	out.Duration = time.Since(start)
	if err != nil {
		return nil, err
	}
	out.Result = res
	if counter != nil {
		out.Stats = counter.Stats()
	}
	return out, nil
}

func (o *runOutcome) print(w io.Writer) {
	res := &o.Result.Result
	status := color.New(color.FgGreen).Sprint(res.Kind)
	if !res.IsSuccess() {
		status = color.New(color.FgRed).Sprint(res.Kind)
	}
	fmt.Fprintf(w, "run:      %s\n", o.ID)
	fmt.Fprintf(w, "status:   %s (%s)\n", status, res.Reason)
	fmt.Fprintf(w, "output:   %#x\n", res.Output)
	fmt.Fprintf(w, "gas used: %d (refund %d)\n", res.GasUsed, res.GasRefunded)
	if res.ContractAddress != nil {
		fmt.Fprintf(w, "contract: %s\n", res.ContractAddress)
	}
	for _, l := range res.Logs {
		fmt.Fprintf(w, "log:      %s topics=%v data=%#x\n", l.Address, l.Topics, l.Data)
	}
	fmt.Fprintf(w, "elapsed:  %s\n", o.Duration)
}

func printStats(w io.Writer, stats []inspector.OpcodeStat) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Opcode", "Count", "Gas"})
	for _, s := range stats {
		table.Append([]string{s.Op.String(), strconv.FormatUint(s.Count, 10), strconv.FormatUint(s.Gas, 10)})
	}
	table.Render()
}

func dumpState(w io.Writer, state vm.State) {
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
	for addr, acc := range state {
		fmt.Fprintf(w, "%s:\n", addr)
		cfg.Fdump(w, acc.Info, acc.Storage)
	}
}

func runCmd(ctx *cli.Context) error {
	cfg, err := loadBaseConfig(ctx)
	if err != nil {
		return err
	}
	code, err := readCode(ctx)
	if err != nil {
		return err
	}
	var input []byte
	if s := ctx.String(inputFlag.Name); s != "" {
		if input, err = hexutil.Decode(ensure0x(s)); err != nil {
			return fmt.Errorf("invalid input: %w", err)
		}
	}
	r := &runner{
		cfg:    cfg,
		code:   code,
		input:  input,
		create: ctx.Bool(createFlag.Name),
		out:    os.Stdout,
		trace:  os.Stderr,
	}
	outcome, err := r.run()
	if err != nil {
		return err
	}
	outcome.print(r.out)
	if len(outcome.Stats) > 0 {
		printStats(r.out, outcome.Stats)
	}
	if ctx.Bool(dumpFlag.Name) {
		dumpState(r.out, outcome.Result.State)
	}
	return nil
}

// gavel judges one submission from the command line: it probes the
// configured language adapters, compiles the given source and runs it
// sandboxed against stdin, printing the verdict and run metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/conf"

	"gavel/internal/config"
	"gavel/internal/executor"
	"gavel/internal/executor/asm"
	"gavel/internal/executor/langs"
	"gavel/internal/judge"
	"gavel/internal/sandbox"
	"gavel/internal/toolchain"
	"gavel/pkg/utils/logger"
)

var (
	configFile  = flag.String("f", "etc/gavel.yaml", "the config file")
	language    = flag.String("lang", "", "adapter name, e.g. python or nasm64")
	problemID   = flag.String("problem", "adhoc", "problem identifier")
	timeLimit   = flag.Duration("time", 2*time.Second, "execution time limit")
	memoryLimit = flag.Int64("mem", 256<<20, "execution memory limit in bytes")
	listOnly    = flag.Bool("list", false, "list adapter availability and exit")
)

func main() {
	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c)
	config.ApplyDefaults(&c)

	if err := logger.Init(c.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	set, engine, err := initRuntimes(ctx, c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init runtimes: %v\n", err)
		os.Exit(1)
	}

	if *listOnly {
		printAvailability(set)
		return
	}

	if *language == "" || flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: gavel -lang <adapter> [flags] <source file>")
		os.Exit(2)
	}
	source, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "read source: %v\n", err)
		os.Exit(1)
	}
	stdin, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read stdin: %v\n", err)
		os.Exit(1)
	}

	worker := judge.NewWorker(set, engine)
	res, err := worker.Judge(ctx, judge.Submission{
		ID:          uuid.NewString(),
		Language:    *language,
		ProblemID:   *problemID,
		Source:      string(source),
		Stdin:       stdin,
		TimeLimit:   *timeLimit,
		MemoryLimit: *memoryLimit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "judge: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("verdict: %s\n", res.Verdict)
	fmt.Printf("time: %dms  memory: %dKB  exit: %d\n", res.WallTimeMs, res.MemoryKB, res.ExitCode)
	if res.CompileLog != "" {
		fmt.Printf("compiler output:\n%s\n", res.CompileLog)
	}
	if res.Stdout != "" {
		fmt.Printf("stdout:\n%s", res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprintf(os.Stderr, "stderr:\n%s", res.Stderr)
	}
}

func initRuntimes(ctx context.Context, c config.Config) (*executor.Set, sandbox.Engine, error) {
	engine, err := sandbox.NewEngine(sandbox.Config{
		HelperPath:     c.Sandbox.HelperPath,
		StdoutMaxBytes: c.Sandbox.StdoutMaxBytes,
	})
	if err != nil {
		return nil, nil, err
	}
	flags, err := c.Runtime.ExtraFlags()
	if err != nil {
		return nil, nil, err
	}

	deps := executor.Deps{
		Registry:      toolchain.NewRegistry(c.Runtime.Paths),
		Engine:        engine,
		Runner:        sandbox.ProcessRunner{},
		WorkRoot:      c.Judge.WorkRoot,
		CompileBudget: c.Judge.CompileBudget,
	}

	x86 := asm.X86Arch(archOverrides(c.X86))
	x64 := asm.X64Arch(archOverrides(c.X64))
	factories := append(langs.Factories(flags),
		func(d executor.Deps) executor.Runtime { return asm.NewGAS(x86, d) },
		func(d executor.Deps) executor.Runtime { return asm.NewGAS(x64, d) },
		func(d executor.Deps) executor.Runtime { return asm.NewNASM(x86, d) },
		func(d executor.Deps) executor.Runtime { return asm.NewNASM(x64, d) },
	)
	return executor.Init(ctx, deps, factories, c.Judge.SelfTest), engine, nil
}

func archOverrides(a config.ArchConfig) asm.Overrides {
	return asm.Overrides{
		QEMUPath:      a.QEMU,
		DynamicLinker: a.DynamicLinker,
		CRTPre:        a.CRTPre,
		CRTPost:       a.CRTPost,
		CRTInLib32:    a.CRTInLib32,
	}
}

func printAvailability(set *executor.Set) {
	for _, name := range set.Names() {
		fmt.Printf("%-10s available\n", name)
	}
	disabled := set.Disabled()
	names := make([]string, 0, len(disabled))
	for name := range disabled {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-10s disabled: %s\n", name, disabled[name])
	}
}

// Command smvmrun loads a container file, runs it to completion against
// the demo host, and reports its outcome — grounded on cmd/ie32to64's
// flag-driven single-file CLI shape.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sharemind-sdk/libvm-sub001/internal/dispatch/fp"
	"github.com/sharemind-sdk/libvm-sub001/internal/host/demo"
	"github.com/sharemind-sdk/libvm-sub001/internal/loader"
	"github.com/sharemind-sdk/libvm-sub001/internal/memory"
	"github.com/sharemind-sdk/libvm-sub001/internal/process"
	"github.com/sharemind-sdk/libvm-sub001/internal/vmconfig"
	"github.com/sharemind-sdk/libvm-sub001/internal/vmerr"
	"github.com/sharemind-sdk/libvm-sub001/internal/vmlog"
)

func main() {
	configPath := flag.String("config", "", "Path to a TOML config file (default: built-in defaults)")
	logLevel := flag.String("log-level", "", "Override the configured log level (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: smvmrun [options] program.smvm\n\nLoads and runs a container file to completion.\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := vmconfig.Default()
	if *configPath != "" {
		loaded, err := vmconfig.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if lvl, err := vmlog.ParseLevel(cfg.LogLevel); err == nil {
		vmlog.SetLevel(lvl)
	}
	if cfg.FloatMode != "" && cfg.FloatMode != fp.BackendName {
		vmlog.For("cmd").WithField("configured", cfg.FloatMode).WithField("compiled", fp.BackendName).
			Warn("float_mode does not match the backend this binary was built with; float_mode only takes effect via -tags hardwarefp at build time")
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	resolver := demo.New()
	ld := loader.New(resolver)
	prog, err := ld.Load(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load error: %v\n", err)
		os.Exit(1)
	}

	counters := memory.NewCounters(
		cfg.Memory.PublicHeapLimit,
		cfg.Memory.PrivateLimit,
		cfg.Memory.ReservedLimit,
		cfg.Memory.TotalLimit,
	)
	proc := process.New(prog, counters, resolver)

	switch result := proc.Run(); result {
	case vmerr.Ok:
		fmt.Printf("finished: return value = %d\n", proc.ReturnValue().Uint64())
	case vmerr.RuntimeException:
		fmt.Printf("trapped: %s at section %d, ip %d\n", proc.Exception(), proc.CurrentCodeSection(), proc.CurrentIP())
		os.Exit(1)
	case vmerr.RuntimeTrap:
		fmt.Printf("paused at section %d, ip %d\n", proc.CurrentCodeSection(), proc.CurrentIP())
	default:
		fmt.Fprintf(os.Stderr, "run error: %v\n", result)
		os.Exit(1)
	}
}

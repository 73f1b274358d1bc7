// Command switchsim runs the switch core against an in-memory loopback
// port backend, grounded on the original simulator's main.c: load
// configuration, initialize every subsystem in order, install SIGINT/
// SIGTERM handlers for a clean shutdown, then block until one arrives.
// A real hardware/port backend is out of scope; LoopbackBackend stands
// in for it here.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/stella/switchsim/pkg/config"
	"github.com/stella/switchsim/pkg/portreg"
	"github.com/stella/switchsim/pkg/switchcore"
	"github.com/stella/switchsim/pkg/switchlog"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file (defaults built in if empty)")
	logLevel := flag.String("log-level", "", "override the configured log level (debug|info|warn|error|fatal)")
	portCount := flag.Int("ports", 24, "number of loopback ports to simulate")
	flag.Parse()

	cfg, err := config.LoadConfigYAML(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "switchsim: loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "switchsim: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := switchlog.New("switchsim", cfg.LogLevel)

	backend := portreg.NewLoopbackBackend(uint32(*portCount))

	log.Info("initializing switch core with %d ports", *portCount)
	core, err := switchcore.New(cfg, backend, log)
	if err != nil {
		log.Fatal("failed to initialize switch core: %v", err)
	}

	if err := core.Start(); err != nil {
		log.Fatal("failed to start switch core: %v", err)
	}
	log.Info("switch core running, press Ctrl-C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received signal %v, shutting down", sig)

	if err := core.Stop(); err != nil {
		log.Fatal("failed to stop switch core cleanly: %v", err)
	}
	log.Info("switch core stopped")
}

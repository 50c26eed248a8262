// tezsyncd is the process entrypoint: CLI flags, config load, log setup and
// the chain-sync manager run loop, following cmd/gabey's app-with-flags
// skeleton trimmed to this repo's scope.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/urfave/cli.v1"

	"github.com/inconshreveable/log15"

	"github.com/abeychain/go-tezsync/chain/apply"
	"github.com/abeychain/go-tezsync/chain/manager"
	"github.com/abeychain/go-tezsync/chain/store/leveldbstore"
	"github.com/abeychain/go-tezsync/chain/types"
	"github.com/abeychain/go-tezsync/config"
	"github.com/abeychain/go-tezsync/monitor"
)

var (
	configFileFlag = cli.StringFlag{Name: "config", Usage: "TOML configuration file"}
	dataDirFlag    = cli.StringFlag{Name: "datadir", Usage: "Data directory for the databases", Value: "./data"}
	sandboxFlag    = cli.BoolFlag{Name: "sandbox", Usage: "Disable disciplinary timeouts"}
	verbosityFlag  = cli.IntFlag{Name: "verbosity", Usage: "Log verbosity (0-5)", Value: 3}
)

func main() {
	app := cli.NewApp()
	app.Name = "tezsyncd"
	app.Usage = "chain-synchronization node"
	app.Flags = []cli.Flag{configFileFlag, dataDirFlag, sandboxFlag, verbosityFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(verbosity int) log15.Logger {
	usecolor := isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("TERM") != "dumb"
	output := io_writer(usecolor)
	handler := log15.StreamHandler(output, log15.TerminalFormat())
	log15.Root().SetHandler(log15.LvlFilterHandler(log15.Lvl(verbosity), handler))
	return log15.New("module", "tezsyncd")
}

func io_writer(usecolor bool) io.Writer {
	if usecolor {
		return colorable.NewColorableStderr()
	}
	return colorable.NewNonColorable(os.Stderr)
}

func run(ctx *cli.Context) error {
	log := setupLogging(ctx.Int(verbosityFlag.Name))
	color.NoColor = !isatty.IsTerminal(os.Stderr.Fd())

	cfg := config.Default
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := config.Load(file, &cfg); err != nil {
			manager.Fatal(log, "failed to load config", "err", err)
		}
	}
	cfg.DataDir = ctx.String(dataDirFlag.Name)
	cfg.IsSandbox = ctx.Bool(sandboxFlag.Name)

	headers, err := leveldbstore.Open(cfg.DataDir + "/headers")
	if err != nil {
		manager.Fatal(log, "failed to open header store", "err", err)
	}
	metas, err := leveldbstore.Open(cfg.DataDir + "/meta")
	if err != nil {
		manager.Fatal(log, "failed to open meta store", "err", err)
	}
	ops, err := leveldbstore.Open(cfg.DataDir + "/operations")
	if err != nil {
		manager.Fatal(log, "failed to open operations store", "err", err)
	}
	defer headers.Close()
	defer metas.Close()
	defer ops.Close()

	m, err := manager.New(cfg, manager.Deps{
		ChainID:     cfg.ChainID,
		LocalPeerID: types.PeerID(localPeerID()),
		Headers:     headers,
		Metas:       metas,
		Operations:  ops,
		Engine:      apply.NewStub(),
		StartCursor: types.Hash{},
		Mempool:     func() []types.Operation { return nil },
	})
	if err != nil {
		manager.Fatal(log, "failed to construct manager", "err", err)
	}

	sampler := monitor.New(cfg.DataDir, 30*time.Second, monitor.Thresholds{}, m.Bus())

	// A concrete PeerLink (wire framing, versioning, authentication) is an
	// external collaborator this repo does not implement; its receive loop
	// is expected to register peers with m and feed inbound messages to
	// m.Dispatch(peerID, msg).
	runCtx, cancel := context.WithCancel(context.Background())
	go m.Run(runCtx)
	go sampler.Run(runCtx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	cancel()
	return nil
}

func localPeerID() string {
	host, err := os.Hostname()
	if err != nil {
		return "local"
	}
	return host
}

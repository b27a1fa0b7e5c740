// Command narwhal-abci-evm runs one node process: the ABCI application
// hosting the EVM execution primitive, the execution engine driving it from
// an ordered certificate stream, and the client gateway.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	"github.com/narwhalabci/evm-engine/internal/abciapp"
	"github.com/narwhalabci/evm-engine/internal/abcitransport"
	"github.com/narwhalabci/evm-engine/internal/engine"
	"github.com/narwhalabci/evm-engine/internal/gateway"
	"github.com/narwhalabci/evm-engine/internal/nodeconfig"
	"github.com/narwhalabci/evm-engine/internal/workerstore"
)

var configFlag = &cli.StringFlag{
	Name:     "config",
	Usage:    "path to the node's TOML configuration file",
	Required: true,
}

func main() {
	app := &cli.App{
		Name:  "narwhal-abci-evm",
		Usage: "ABCI application and execution engine for a BFT-ordered EVM chain",
		Flags: []cli.Flag{configFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := nodeconfig.Load(c.String(configFlag.Name))
	if err != nil {
		return err
	}

	application := abciapp.New(cfg.ChainID, cfg.Demo)

	srv, err := abcitransport.StartServer(cfg.AbciAddr, application)
	if err != nil {
		return err
	}
	defer srv.Stop()

	consensusClient, err := abcitransport.DialClient(cfg.AbciAddr)
	if err != nil {
		return err
	}
	queryClient, err := abcitransport.DialClient(cfg.AbciAddr)
	if err != nil {
		return err
	}

	store := workerstore.New(cfg.StorePath)
	eng := engine.New(consensusClient, queryClient, store)
	if err := eng.Start(); err != nil {
		return err
	}

	ready := func() bool { return true }
	gw := gateway.New(cfg.GatewayAddr, cfg.MempoolAddr, eng, ready)

	certs := newInMemoryCertificateSource()
	go eng.RunFrom(certs)

	log.Info("narwhal-abci-evm ready", "abci", cfg.AbciAddr, "gateway", cfg.GatewayAddr)
	return gw.ListenAndServe()
}

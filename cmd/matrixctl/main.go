// Command matrixctl registers participants in a referral matrix program and
// inspects the on-chain state it depends on.
//
// Usage:
//
//	matrixctl [global flags] register <wallet-key-file> <config-file> <referrer-wallet> [lookup-table]
//	matrixctl [global flags] claim <wallet-key-file> <config-file>
//	matrixctl [global flags] inspect <config-file> <wallet-address>
//	matrixctl [global flags] table <config-file> <table-address>
//	matrixctl [global flags] journal <config-file>
//	matrixctl seal-key <keypair-file> <sealed-file>
//
// Every command exits with status 1 when it fails.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/matrixkit/matrixkit-go/config"
	"github.com/matrixkit/matrixkit-go/logging"
	"github.com/matrixkit/matrixkit-go/matrix"
	"github.com/matrixkit/matrixkit-go/network"
)

const serviceName = "matrixctl"

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      serviceName,
		Usage:     "register and inspect referral matrix participants",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Usage: "log level (debug, info, warn, error); overrides MATRIX_LOG_LEVEL"},
			&cli.StringFlag{Name: "rpc-url", Usage: "ledger RPC endpoint; overrides the config file and MATRIX_RPC_URL"},
			&cli.StringFlag{Name: "data-dir", Usage: "directory holding the journal; overrides MATRIX_DATA_DIR"},
			&cli.StringFlag{Name: "env-file", Usage: "dotenv file to load before reading MATRIX_* variables (default ./.env if present)"},
		},
		Before: func(c *cli.Context) error {
			return config.LoadEnvFile(c.String("env-file"))
		},
		Commands: []*cli.Command{
			registerCommand(),
			claimCommand(),
			inspectCommand(),
			tableCommand(),
			journalCommand(),
			sealKeyCommand(),
		},
	}
}

// session is the state shared by every command: the validated config, the
// logger and, once connected, the ledger.
type session struct {
	cfg      config.Config
	protocol *matrix.Protocol
	logger   zerolog.Logger
	ledger   network.LedgerService
}

// openSession loads the config file at path, layers the environment and
// global flags over it and validates the result.
func openSession(c *cli.Context, path string) (*session, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(&cfg, nil); err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Runtime.LogLevel = lvl
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.Runtime.DataDir = dir
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	logger, err := logging.New(serviceName, cfg.Runtime.LogLevel, cfg.Runtime.LogFormat, c.App.ErrWriter)
	if err != nil {
		return nil, err
	}
	protocol, err := cfg.Protocol()
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, protocol: protocol, logger: logger}, nil
}

// connect attaches the RPC ledger client.
func (s *session) connect(c *cli.Context) error {
	rpcCfg, err := s.cfg.ResolveRPC(c.String("rpc-url"))
	if err != nil {
		return err
	}
	s.ledger = network.NewRPCClient(*rpcCfg)
	s.logger.Debug().Str("rpc_url", rpcCfg.URL).Str("network", s.cfg.Network).Msg("ledger client ready")
	return nil
}

func argCount(c *cli.Context, lo, hi int) error {
	if n := c.NArg(); n < lo || n > hi {
		return fmt.Errorf("%s: expected %d..%d arguments, got %d (usage: %s %s)", c.Command.Name, lo, hi, n, c.Command.Name, c.Command.ArgsUsage)
	}
	return nil
}

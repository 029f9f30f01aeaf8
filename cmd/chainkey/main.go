package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/mahdiidarabi/chainkey/internal/config"
	"github.com/mahdiidarabi/chainkey/internal/logging"
	"github.com/mahdiidarabi/chainkey/pkg/chainkey"
)

// app carries state shared by all commands of one invocation.
type app struct {
	configPath  string
	chainName   string
	keystoreDir string
	kdfName     string
	logLevel    string
	logFormat   string
	password    string

	cfg    *config.Config
	logger *zap.Logger
	client *chainkey.Client

	in  io.Reader
	out io.Writer
	err io.Writer
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, err: errOut}

	root := &cobra.Command{
		Use:   "chainkey",
		Short: "Manage keys and sign transactions for Ethereum-style chains",
		Long: `chainkey generates secp256k1 keys, stores them in Web3 Secret Storage
keystores, signs messages and transactions with optional EIP-155 replay
protection, and verifies signatures.

Settings come from an optional YAML file (--config or $CHAINKEY_CONFIG), then
CHAINKEY_* environment variables, then flags.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (YAML)")
	flags.StringVar(&a.chainName, "chain", "", "chain preset (legacy, mainnet, moac, moac-testnet) or chain id")
	flags.StringVar(&a.keystoreDir, "keystore", "", "keystore directory")
	flags.StringVar(&a.kdfName, "kdf", "", "key derivation for new keystores (scrypt, scrypt-light, pbkdf2)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "log format (console, json)")
	flags.StringVar(&a.password, "password", "", "keystore password (prompted when omitted)")

	root.AddCommand(
		newKeyCmd(a),
		newAddressCmd(a),
		newSignCmd(a),
		newVerifyCmd(a),
		newKeystoreCmd(a),
		newTxCmd(a),
	)
	return root
}

// setup loads configuration and builds the logger and client.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.chainName != "" {
		cfg.Chain = a.chainName
	}
	if a.keystoreDir != "" {
		cfg.KeystoreDir = a.keystoreDir
	}
	if a.kdfName != "" {
		cfg.KDF = a.kdfName
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	params, err := cfg.ChainParams()
	if err != nil {
		return err
	}
	kdf, err := cfg.KDFConfig()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.client = chainkey.NewClient().WithChain(params).WithKDF(kdf).WithLogger(logger)
	logger.Debug("configured",
		zap.Stringer("chain", params),
		zap.String("kdf", kdf.KDF),
		zap.String("keystore", cfg.KeystoreDir))
	return nil
}

// readPassword returns --password or prompts for one on the terminal.
func (a *app) readPassword(prompt string, confirm bool) (string, error) {
	if a.password != "" {
		return a.password, nil
	}
	f, ok := a.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", errors.New("no terminal to prompt for a password, use --password")
	}

	read := func(p string) (string, error) {
		fmt.Fprint(a.err, p+": ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.err)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	pw, err := read(prompt)
	if err != nil {
		return "", err
	}
	if confirm {
		again, err := read("Repeat password")
		if err != nil {
			return "", err
		}
		if pw != again {
			return "", errors.New("passwords do not match")
		}
	}
	return pw, nil
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

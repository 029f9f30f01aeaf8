package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mahdiidarabi/chainkey/pkg/address"
	"github.com/mahdiidarabi/chainkey/pkg/keys"
	"github.com/mahdiidarabi/chainkey/pkg/keystore"
)

type accountOutput struct {
	Address string `json:"address"`
	Path    string `json:"path"`
}

func toAccount(acc keystore.Account) accountOutput {
	return accountOutput{Address: acc.Address.Checksum(), Path: acc.Path}
}

func newKeystoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "keystore",
		Aliases: []string{"ks"},
		Short:   "Manage encrypted key files",
		Long: `Manage Web3 Secret Storage (version 3) key files in the keystore directory
(--keystore, $CHAINKEY_KEYSTORE_DIR or ~/.chainkey/keystore).`,
	}
	cmd.AddCommand(
		newKeystoreNewCmd(a),
		newKeystoreImportCmd(a),
		newKeystoreListCmd(a),
		newKeystoreDecryptCmd(a),
	)
	return cmd
}

func newKeystoreNewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Generate a key and store it encrypted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.readPassword("New password", true)
			if err != nil {
				return err
			}
			kp, err := a.client.NewKey()
			if err != nil {
				return err
			}
			defer kp.Zero()

			acc, err := a.client.Store(a.cfg.KeystoreDir).StoreKey(kp, pw)
			if err != nil {
				return err
			}
			return a.printJSON(toAccount(acc))
		},
	}
}

func newKeystoreImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <private-key-hex | keyfile.json>",
		Short: "Import a raw private key or an existing key file",
		Long: `Import a key into the keystore directory.

A path to an existing key file is copied after checking the password. Anything
else is taken as a hex private key and encrypted under a new password.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.client.Store(a.cfg.KeystoreDir)

			if data, err := os.ReadFile(args[0]); err == nil {
				pw, err := a.readPassword("Password", false)
				if err != nil {
					return err
				}
				acc, err := store.Import(data, pw)
				if err != nil {
					return err
				}
				return a.printJSON(toAccount(acc))
			}

			kp, err := keys.FromPrivateHex(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("not a key file or private key: %w", err)
			}
			defer kp.Zero()
			pw, err := a.readPassword("New password", true)
			if err != nil {
				return err
			}
			acc, err := store.StoreKey(kp, pw)
			if err != nil {
				return err
			}
			return a.printJSON(toAccount(acc))
		},
	}
}

func newKeystoreListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts in the keystore directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := a.client.Store(a.cfg.KeystoreDir).Accounts()
			if err != nil {
				return err
			}
			out := make([]accountOutput, 0, len(accounts))
			for _, acc := range accounts {
				out = append(out, toAccount(acc))
			}
			return a.printJSON(out)
		},
	}
}

type decryptOutput struct {
	Path       string `json:"path"`
	Address    string `json:"address,omitempty"`
	PrivateKey string `json:"private_key,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newKeystoreDecryptCmd(a *app) *cobra.Command {
	var showPrivate bool
	cmd := &cobra.Command{
		Use:   "decrypt <keyfile>...",
		Short: "Check that key files open under a password",
		Long: `Decrypt one or more key files with the same password on a worker pool
($CHAINKEY_WORKERS, defaults to the number of CPUs). Exits non-zero if any
file fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.readPassword("Password", false)
			if err != nil {
				return err
			}

			out := make([]decryptOutput, len(args))
			var reqs []keystore.DecryptRequest
			var slots []int
			for i, path := range args {
				out[i].Path = path
				data, err := os.ReadFile(path)
				if err != nil {
					out[i].Error = err.Error()
					continue
				}
				rec, err := keystore.ParseRecord(data)
				if err != nil {
					out[i].Error = err.Error()
					continue
				}
				reqs = append(reqs, keystore.DecryptRequest{Record: rec, Password: pw})
				slots = append(slots, i)
			}

			pool := keystore.NewPool(
				keystore.WithWorkers(a.cfg.Workers),
				keystore.WithPoolLogger(a.logger),
			)
			a.logger.Debug("decrypting key files", zap.Int("files", len(reqs)), zap.Int("workers", pool.Workers()))
			results, err := pool.DecryptAll(cmd.Context(), reqs)
			if err != nil {
				return err
			}

			failed := 0
			for _, res := range results {
				o := &out[slots[res.Index]]
				if res.Err != nil {
					o.Error = res.Err.Error()
					continue
				}
				o.Address = address.FromKeyPair(res.KeyPair).Checksum()
				if showPrivate {
					o.PrivateKey = res.KeyPair.PrivateHex()
				}
				res.KeyPair.Zero()
			}
			for _, o := range out {
				if o.Error != "" {
					failed++
				}
			}
			if err := a.printJSON(out); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d key files failed to decrypt", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showPrivate, "show-private", false, "also print the private keys")
	return cmd
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mahdiidarabi/chainkey/pkg/address"
	"github.com/mahdiidarabi/chainkey/pkg/keys"
)

// keyInfo is the printed form of a key pair.
type keyInfo struct {
	Address             string `json:"address"`
	PublicKey           string `json:"public_key"`
	CompressedPublicKey string `json:"compressed_public_key"`
	PrivateKey          string `json:"private_key,omitempty"`
}

func describeKey(kp *keys.KeyPair, withPrivate bool) keyInfo {
	info := keyInfo{
		Address:             address.FromKeyPair(kp).Checksum(),
		PublicKey:           kp.PublicHex(),
		CompressedPublicKey: kp.CompressedPublicHex(),
	}
	if withPrivate {
		info.PrivateKey = kp.PrivateHex()
	}
	return info
}

// keySource selects where a signing key comes from.
type keySource struct {
	keyHex  string
	keyFile string
	from    string
}

func (s *keySource) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.keyHex, "key", "", "private key as hex")
	cmd.Flags().StringVar(&s.keyFile, "keyfile", "", "keystore file holding the key")
	cmd.Flags().StringVar(&s.from, "from", "", "address of a key in the keystore directory")
}

// load resolves the source to a key pair, prompting for a password when a
// keystore is involved.
func (a *app) loadKey(s keySource) (*keys.KeyPair, error) {
	switch {
	case s.keyHex != "":
		return keys.FromPrivateHex(s.keyHex)
	case s.keyFile != "":
		data, err := os.ReadFile(s.keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read keyfile: %w", err)
		}
		pw, err := a.readPassword("Password", false)
		if err != nil {
			return nil, err
		}
		return a.client.DecryptKey(data, pw)
	case s.from != "":
		addr, err := address.Parse(s.from)
		if err != nil {
			return nil, err
		}
		pw, err := a.readPassword("Password", false)
		if err != nil {
			return nil, err
		}
		return a.client.Store(a.cfg.KeystoreDir).GetKey(addr, pw)
	default:
		return nil, errors.New("one of --key, --keyfile or --from is required")
	}
}

func newKeyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Generate and inspect key pairs",
	}

	var showPrivate bool
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a key pair without storing it",
		Long: `Generate a key pair and print its address and public key.

The private key is only printed with --show-private. Use "keystore new" to
generate a key and store it encrypted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := a.client.NewKey()
			if err != nil {
				return err
			}
			defer kp.Zero()
			return a.printJSON(describeKey(kp, showPrivate))
		},
	}
	newCmd.Flags().BoolVar(&showPrivate, "show-private", false, "print the private key")

	inspectCmd := &cobra.Command{
		Use:   "inspect <private-or-public-key-hex>",
		Short: "Show the address and public forms of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := keys.FromPrivateHex(args[0])
			if err != nil {
				kp, err = keys.FromPublicHex(args[0])
				if err != nil {
					return fmt.Errorf("not a private or public key: %w", err)
				}
			}
			defer kp.Zero()
			return a.printJSON(describeKey(kp, false))
		},
	}

	cmd.AddCommand(newCmd, inspectCmd)
	return cmd
}

func newAddressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Address utilities",
	}

	var strict bool
	checksumCmd := &cobra.Command{
		Use:   "checksum <address>",
		Short: "Print the EIP-55 checksummed form of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parse := address.Parse
			if strict {
				parse = address.ParseChecksummed
			}
			addr, err := parse(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, addr.Checksum())
			return nil
		},
	}
	checksumCmd.Flags().BoolVar(&strict, "strict", false, "reject mixed-case input with a wrong checksum")

	cmd.AddCommand(checksumCmd)
	return cmd
}

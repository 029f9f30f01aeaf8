package main

import (
	"github.com/spf13/cobra"

	"github.com/mahdiidarabi/chainkey/internal/hexutil"
	"github.com/mahdiidarabi/chainkey/internal/keccak"
	"github.com/mahdiidarabi/chainkey/pkg/address"
)

type signOutput struct {
	Address   string `json:"address"`
	Chain     string `json:"chain"`
	Digest    string `json:"digest"`
	Signature string `json:"signature"`
}

func newSignCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign messages and digests",
		Long: `Sign a message or a precomputed 32-byte digest.

The signature is printed as v || r || s in hex. On a replay-protected chain
(--chain) v encodes the chain id.`,
	}

	var msgKey keySource
	messageCmd := &cobra.Command{
		Use:   "message <text>",
		Short: "Sign the Keccak-256 hash of a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.signDigest(msgKey, keccak.Hash([]byte(args[0])))
		},
	}
	msgKey.register(messageCmd)

	var digestKey keySource
	digestCmd := &cobra.Command{
		Use:   "digest <hex>",
		Short: "Sign a 32-byte digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, err := hexutil.Decode(args[0])
			if err != nil {
				return err
			}
			return a.signDigest(digestKey, digest)
		},
	}
	digestKey.register(digestCmd)

	cmd.AddCommand(messageCmd, digestCmd)
	return cmd
}

func (a *app) signDigest(src keySource, digest []byte) error {
	kp, err := a.loadKey(src)
	if err != nil {
		return err
	}
	defer kp.Zero()

	wire, err := a.client.SignDigest(kp, digest)
	if err != nil {
		return err
	}
	return a.printJSON(signOutput{
		Address:   address.FromKeyPair(kp).Checksum(),
		Chain:     a.client.Chain().String(),
		Digest:    hexutil.Encode(digest),
		Signature: hexutil.Encode(wire),
	})
}

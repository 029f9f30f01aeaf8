package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mahdiidarabi/chainkey/internal/hexutil"
	"github.com/mahdiidarabi/chainkey/pkg/address"
	"github.com/mahdiidarabi/chainkey/pkg/chainkey"
)

var errVerificationFailed = errors.New("signature verification failed")

type verifyOutput struct {
	Valid  bool   `json:"valid"`
	Signer string `json:"signer,omitempty"`
	Error  string `json:"error,omitempty"`
}

type batchOutput struct {
	Index int `json:"index"`
	verifyOutput
}

func toOutput(res chainkey.VerificationResult) verifyOutput {
	out := verifyOutput{Valid: res.Valid}
	if res.Err == nil || !res.Signer.IsZero() {
		out.Signer = res.Signer.Checksum()
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func newVerifyCmd(a *app) *cobra.Command {
	var (
		addr     string
		pubKey   string
		isDigest bool
	)
	cmd := &cobra.Command{
		Use:   "verify <message> <signature>",
		Short: "Verify a signature against an address or public key",
		Long: `Verify a v || r || s signature over a message.

The message is hashed with Keccak-256 unless --digest is set, in which case it
is taken as a hex digest. Exits non-zero when the signature does not match.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" && pubKey == "" {
				return errors.New("one of --address or --public-key is required")
			}

			rec := &chainkey.SignedMessage{}
			var err error
			if isDigest {
				if rec.Digest, err = hexutil.Decode(args[0]); err != nil {
					return fmt.Errorf("invalid digest: %w", err)
				}
			} else {
				rec.Message = []byte(args[0])
			}
			if rec.Signature, err = hexutil.Decode(args[1]); err != nil {
				return fmt.Errorf("invalid signature: %w", err)
			}
			if pubKey != "" {
				if rec.PublicKey, err = hexutil.Decode(pubKey); err != nil {
					return fmt.Errorf("invalid public key: %w", err)
				}
			} else {
				parsed, err := address.Parse(addr)
				if err != nil {
					return err
				}
				rec.Address = &parsed
			}

			results, err := a.client.VerifyRecords(cmd.Context(), []*chainkey.SignedMessage{rec})
			if err != nil {
				return err
			}
			res := results[0]
			if err := a.printJSON(toOutput(res)); err != nil {
				return err
			}
			if !res.Valid {
				return errVerificationFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "address", "", "expected signer address")
	cmd.Flags().StringVar(&pubKey, "public-key", "", "expected signer public key as hex")
	cmd.Flags().BoolVar(&isDigest, "digest", false, "treat the message argument as a hex digest")

	cmd.AddCommand(newVerifyBatchCmd(a))
	return cmd
}

func newVerifyBatchCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Verify every record of a JSON or CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(args[0])), ".")
			}
			var parser chainkey.SignatureParser
			switch format {
			case "json":
				parser = &chainkey.JSONParser{}
			case "csv":
				parser = &chainkey.CSVParser{}
			default:
				return fmt.Errorf("unknown format %q, use json or csv", format)
			}

			results, err := a.client.WithParser(parser).VerifyBatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := make([]batchOutput, 0, len(results))
			failed := 0
			for _, res := range results {
				if !res.Valid {
					failed++
				}
				out = append(out, batchOutput{Index: res.Index, verifyOutput: toOutput(res)})
			}
			if err := a.printJSON(out); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d records", errVerificationFailed, failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "input format (json, csv); defaults to the file extension")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mahdiidarabi/chainkey/internal/hexutil"
	"github.com/mahdiidarabi/chainkey/pkg/address"
	"github.com/mahdiidarabi/chainkey/pkg/transaction"
)

type txOutput struct {
	Raw         string                   `json:"raw,omitempty"`
	Hash        string                   `json:"hash"`
	Sender      string                   `json:"sender,omitempty"`
	ChainID     string                   `json:"chain_id,omitempty"`
	Transaction *transaction.Transaction `json:"transaction"`
}

func newTxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Sign and decode transactions",
	}
	cmd.AddCommand(newTxSignCmd(a), newTxDecodeCmd(a), newTxSenderCmd(a))
	return cmd
}

func newTxSignCmd(a *app) *cobra.Command {
	var (
		src      keySource
		to       string
		value    string
		nonce    uint64
		gas      uint64
		gasPrice string
		data     string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a transaction and print its raw encoding",
		Long: `Build and sign a legacy transaction for the configured chain.

Omit --to to create a contract from --data. Quantities accept decimal or
0x-prefixed hex.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			val, err := hexutil.ParseBigInt(value)
			if err != nil {
				return fmt.Errorf("invalid --value: %w", err)
			}
			price, err := hexutil.ParseBigInt(gasPrice)
			if err != nil {
				return fmt.Errorf("invalid --gas-price: %w", err)
			}
			payload, err := hexutil.Decode(data)
			if err != nil {
				return fmt.Errorf("invalid --data: %w", err)
			}

			var tx *transaction.Transaction
			if to == "" {
				tx = transaction.NewContractCreation(nonce, val, gas, price, payload)
			} else {
				recipient, err := address.Parse(to)
				if err != nil {
					return err
				}
				tx = transaction.New(nonce, recipient, val, gas, price, payload)
			}

			kp, err := a.loadKey(src)
			if err != nil {
				return err
			}
			defer kp.Zero()

			signed, err := a.client.SignTransaction(tx, kp)
			if err != nil {
				return err
			}
			return a.printTx(signed, true)
		},
	}
	src.register(cmd)
	cmd.Flags().StringVar(&to, "to", "", "recipient address (omit for contract creation)")
	cmd.Flags().StringVar(&value, "value", "0", "amount to transfer")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "sender nonce")
	cmd.Flags().Uint64Var(&gas, "gas", transaction.TxGas, "gas limit")
	cmd.Flags().StringVar(&gasPrice, "gas-price", "0", "gas price")
	cmd.Flags().StringVar(&data, "data", "", "payload as hex")
	return cmd
}

func newTxDecodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <raw-hex>",
		Short: "Decode a signed transaction and recover its sender",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := decodeRaw(args[0])
			if err != nil {
				return err
			}
			return a.printTx(tx, false)
		},
	}
}

func newTxSenderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sender <raw-hex>",
		Short: "Print the sender of a signed transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := decodeRaw(args[0])
			if err != nil {
				return err
			}
			sender, err := transaction.RecoverSender(tx)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, sender.Checksum())
			return nil
		},
	}
}

func decodeRaw(s string) (*transaction.Transaction, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return transaction.DecodeSigned(raw)
}

func (a *app) printTx(tx *transaction.Transaction, withRaw bool) error {
	hash, err := transaction.Hash(tx)
	if err != nil {
		return err
	}
	out := txOutput{Hash: hexutil.Encode(hash[:]), Transaction: tx}
	if withRaw {
		raw, err := transaction.EncodeSigned(tx)
		if err != nil {
			return err
		}
		out.Raw = hexutil.Encode(raw)
	}
	if id := tx.ChainID(); id != nil {
		out.ChainID = id.String()
	}
	sender, err := transaction.RecoverSender(tx)
	if err != nil {
		return err
	}
	out.Sender = sender.Checksum()
	return a.printJSON(out)
}

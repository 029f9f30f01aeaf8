// Package chainkey manages account keys for Ethereum-style chains: key
// generation, deterministic recoverable signatures, addresses, encrypted
// keystores and replay-protected transaction signing.
//
// # Quick Start
//
//	import "github.com/mahdiidarabi/chainkey/pkg/chainkey"
//
//	// Sign for MOAC mainnet (chain id 99)
//	client := chainkey.NewClient().WithChain(chain.MoacMainnet)
//
//	kp, err := client.NewKey()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sig, err := client.SignMessage(kp, []byte("Hi Mom!"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println(client.VerifyMessage(kp, []byte("Hi Mom!"), sig)) // true
//
// # Keystores
//
// Keys are persisted as Web3 Secret Storage (version 3) records:
//
//	data, err := client.EncryptKey(kp, "password")
//	kp2, err := client.DecryptKey(data, "password")
//
// The default KDF is scrypt with N=2^18. Use WithKDF(keystore.LightScrypt())
// where memory or time is short.
//
// # Batch Verification
//
// Signatures can be checked in bulk from JSON or CSV files:
//
//	client := chainkey.NewClient().
//	    WithChain(chain.Mainnet).
//	    WithParser(&chainkey.CSVParser{SignatureCol: "sig"})
//
//	results, err := client.VerifyBatch(ctx, "signatures.csv")
//
// Implement SignatureParser to read signatures from other sources.
package chainkey

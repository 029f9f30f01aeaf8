package chainkey

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mahdiidarabi/chainkey/internal/hexutil"
	"github.com/mahdiidarabi/chainkey/pkg/address"
)

// SignedMessage is one signature to verify. Digest wins over Message when
// both are set. At least one of Address and PublicKey names the expected
// signer.
type SignedMessage struct {
	Message   []byte
	Digest    []byte
	Signature []byte
	Address   *address.Address
	PublicKey []byte
}

// SignatureParser defines the interface for parsing signatures from various sources.
type SignatureParser interface {
	// ParseSignatures parses signatures from a source and returns them.
	ParseSignatures(source string) ([]*SignedMessage, error)
}

// Default field and column names.
const (
	DefaultMessageField   = "message"
	DefaultDigestField    = "digest"
	DefaultSignatureField = "signature"
	DefaultAddressField   = "address"
	DefaultPublicKeyField = "public_key"
)

// fieldNames resolves configured names against the defaults.
type fieldNames struct {
	message, digest, signature, address, publicKey string
}

func resolveFields(message, digest, sig, addr, pub string) fieldNames {
	or := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	return fieldNames{
		message:   or(message, DefaultMessageField),
		digest:    or(digest, DefaultDigestField),
		signature: or(sig, DefaultSignatureField),
		address:   or(addr, DefaultAddressField),
		publicKey: or(pub, DefaultPublicKeyField),
	}
}

// JSONParser parses signatures from JSON files.
type JSONParser struct {
	MessageField   string // Field name for the plain message (default: "message")
	DigestField    string // Field name for a precomputed digest (default: "digest")
	SignatureField string // Field name for the wire signature (default: "signature")
	AddressField   string // Field name for the expected signer (default: "address")
	PublicKeyField string // Field name for the expected public key (default: "public_key")
}

// ParseSignatures parses signatures from a JSON file.
//
// Expected format:
//
//	[
//	  {"message": "Hi Mom!", "signature": "0x1c...", "address": "0x..."},
//	  {"digest": "0x...", "signature": "0x...", "public_key": "04..."}
//	]
func (p *JSONParser) ParseSignatures(jsonFile string) ([]*SignedMessage, error) {
	file, err := os.Open(jsonFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer file.Close()

	var items []map[string]interface{}
	if err := json.NewDecoder(file).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	f := resolveFields(p.MessageField, p.DigestField, p.SignatureField, p.AddressField, p.PublicKeyField)
	messages := make([]*SignedMessage, 0, len(items))
	for i, item := range items {
		get := func(name string) (string, bool, error) {
			v, ok := item[name]
			if !ok || v == nil {
				return "", false, nil
			}
			s, ok := v.(string)
			if !ok {
				return "", false, fmt.Errorf("item %d: field %s must be a string", i, name)
			}
			return s, true, nil
		}

		row := map[string]string{}
		for _, name := range []string{f.message, f.digest, f.signature, f.address, f.publicKey} {
			s, ok, err := get(name)
			if err != nil {
				return nil, err
			}
			if ok {
				row[name] = s
			}
		}

		msg, err := f.build(row)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// CSVParser parses signatures from CSV files.
type CSVParser struct {
	MessageCol   string // Column name for the plain message (default: "message")
	DigestCol    string // Column name for a precomputed digest (default: "digest")
	SignatureCol string // Column name for the wire signature (default: "signature")
	AddressCol   string // Column name for the expected signer (default: "address")
	PublicKeyCol string // Column name for the expected public key (default: "public_key")
}

// ParseSignatures parses signatures from a CSV file with a header row.
func (p *CSVParser) ParseSignatures(csvFile string) ([]*SignedMessage, error) {
	file, err := os.Open(csvFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	f := resolveFields(p.MessageCol, p.DigestCol, p.SignatureCol, p.AddressCol, p.PublicKeyCol)
	index := map[string]int{}
	for i, col := range header {
		index[col] = i
	}
	if _, ok := index[f.signature]; !ok {
		return nil, fmt.Errorf("missing required column: %s", f.signature)
	}

	messages := make([]*SignedMessage, 0)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		row := map[string]string{}
		for _, name := range []string{f.message, f.digest, f.signature, f.address, f.publicKey} {
			if i, ok := index[name]; ok && i < len(record) && record[i] != "" {
				row[name] = record[i]
			}
		}

		msg, err := f.build(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// build turns the named values of one item into a SignedMessage.
func (f fieldNames) build(row map[string]string) (*SignedMessage, error) {
	msg := &SignedMessage{}

	if s, ok := row[f.digest]; ok {
		d, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.digest, err)
		}
		msg.Digest = d
	} else if s, ok := row[f.message]; ok {
		msg.Message = []byte(s)
	} else {
		return nil, fmt.Errorf("missing %s or %s field", f.message, f.digest)
	}

	s, ok := row[f.signature]
	if !ok {
		return nil, fmt.Errorf("missing %s field", f.signature)
	}
	sig, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.signature, err)
	}
	msg.Signature = sig

	if s, ok := row[f.address]; ok {
		a, err := address.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.address, err)
		}
		msg.Address = &a
	}
	if s, ok := row[f.publicKey]; ok {
		pub, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.publicKey, err)
		}
		msg.PublicKey = pub
	}

	return msg, nil
}

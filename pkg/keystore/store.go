package keystore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mahdiidarabi/chainkey/pkg/address"
	"github.com/mahdiidarabi/chainkey/pkg/keys"
)

// Account is a key file found in a Store.
type Account struct {
	Address address.Address
	Path    string
}

// Store keeps one record per file in a directory. File names follow the
// UTC--<timestamp>--<address> convention so other wallets can read them.
type Store struct {
	dir    string
	kdf    KDFConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates a store rooted at dir. New keys are sealed with cfg.
func NewStore(dir string, cfg KDFConfig) *Store {
	return &Store{
		dir:    dir,
		kdf:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
}

// WithLogger sets the logger used for store events.
func (s *Store) WithLogger(logger *zap.Logger) *Store {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// StoreKey encrypts kp and writes it to a new file. The file is read back and
// decrypted before the call returns.
func (s *Store) StoreKey(kp *keys.KeyPair, password string) (Account, error) {
	rec, err := Encrypt(kp, password, s.kdf)
	if err != nil {
		return Account{}, fmt.Errorf("failed to encrypt key: %w", err)
	}
	return s.write(rec, password)
}

// Import writes an already encrypted record after checking that password
// opens it.
func (s *Store) Import(data []byte, password string) (Account, error) {
	rec, err := ParseRecord(data)
	if err != nil {
		return Account{}, err
	}
	kp, err := Decrypt(rec, password)
	if err != nil {
		return Account{}, err
	}
	defer kp.Zero()

	if rec.Address == "" {
		addr := address.FromKeyPair(kp)
		rec.Address = strings.TrimPrefix(addr.Hex(), "0x")
	}
	return s.write(rec, password)
}

func (s *Store) write(rec *Record, password string) (Account, error) {
	addr, err := rec.AccountAddress()
	if err != nil {
		return Account{}, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Account{}, fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return Account{}, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	path := filepath.Join(s.dir, fileName(s.now(), addr))
	if err := writeFileAtomic(path, data); err != nil {
		return Account{}, err
	}

	check, err := os.ReadFile(path)
	if err != nil {
		return Account{}, fmt.Errorf("failed to read back %s: %w", path, err)
	}
	if !bytes.Equal(check, data) {
		return Account{}, fmt.Errorf("failed to verify %s: content changed", path)
	}
	kp, err := DecryptJSON(check, password)
	if err != nil {
		os.Remove(path)
		return Account{}, fmt.Errorf("failed to verify %s: %w", path, err)
	}
	kp.Zero()

	s.logger.Info("stored key", zap.String("address", addr.Checksum()), zap.String("path", path))
	return Account{Address: addr, Path: path}, nil
}

// Accounts lists the records in the store ordered by file name. Files that
// are not records are skipped.
func (s *Store) Accounts() ([]Account, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read keystore directory: %w", err)
	}

	var accounts []Account
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
			continue
		}
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable key file", zap.String("path", path), zap.Error(err))
			continue
		}
		rec, err := ParseRecord(data)
		if err != nil {
			s.logger.Debug("skipping non-keystore file", zap.String("path", path), zap.Error(err))
			continue
		}
		addr, err := rec.AccountAddress()
		if err != nil {
			s.logger.Debug("skipping record without address", zap.String("path", path))
			continue
		}
		accounts = append(accounts, Account{Address: addr, Path: path})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Path < accounts[j].Path })
	return accounts, nil
}

// Find returns the first account holding addr.
func (s *Store) Find(addr address.Address) (Account, error) {
	accounts, err := s.Accounts()
	if err != nil {
		return Account{}, err
	}
	for _, a := range accounts {
		if a.Address == addr {
			return a, nil
		}
	}
	return Account{}, fmt.Errorf("%w: %s", ErrNoMatch, addr.Checksum())
}

// GetKey decrypts the record stored for addr.
func (s *Store) GetKey(addr address.Address, password string) (*keys.KeyPair, error) {
	acc, err := s.Find(addr)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(acc.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", acc.Path, err)
	}
	return DecryptJSON(data, password)
}

// Delete removes the record for addr once password has been checked.
func (s *Store) Delete(addr address.Address, password string) error {
	acc, err := s.Find(addr)
	if err != nil {
		return err
	}
	kp, err := s.GetKey(addr, password)
	if err != nil {
		return err
	}
	kp.Zero()

	if err := os.Remove(acc.Path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", acc.Path, err)
	}
	s.logger.Info("deleted key", zap.String("address", addr.Checksum()), zap.String("path", acc.Path))
	return nil
}

func fileName(t time.Time, addr address.Address) string {
	ts := t.UTC().Format("2006-01-02T15-04-05.000000000Z")
	return fmt.Sprintf("UTC--%s--%x", ts, addr[:])
}

func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := os.Chmod(f.Name(), 0o600); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to set key file mode: %w", err)
	}
	return os.Rename(f.Name(), path)
}

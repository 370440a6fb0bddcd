package wallet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

// DefaultWalletPath is where bittensor keeps wallets.
const DefaultWalletPath = "~/.bittensor/wallets"

const naclPrefix = "$NACL"

// naclSalt is the fixed salt bittensor keyfiles are encrypted with.
var naclSalt = []byte("\x13q\x83\xdf\xf1Z\t\xbc\x9c\x90\xb5Q\x879\xe9\xb1")

// KDFParams configures the argon2i key derivation for $NACL keyfiles.
type KDFParams struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultKDF matches libsodium's OPSLIMIT_SENSITIVE / MEMLIMIT_SENSITIVE.
func DefaultKDF() KDFParams {
	return KDFParams{Time: 8, MemoryKiB: 512 * 1024, Threads: 1}
}

// KeyfileProvider reads the bittensor on-disk wallet layout:
//
//	<path>/<name>/coldkeypub.txt
//	<path>/<name>/coldkey
//	<path>/<name>/hotkeys/<hotkey>
type KeyfileProvider struct {
	KDF KDFParams
}

// NewKeyfileProvider creates a provider with the default KDF.
func NewKeyfileProvider() *KeyfileProvider {
	return &KeyfileProvider{KDF: DefaultKDF()}
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		path = DefaultWalletPath
	}
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Load reads the public coldkey and, if requested, the hotkey address.
func (p *KeyfileProvider) Load(name, path, hotkey string) (*Wallet, error) {
	root, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(root, name)

	pub, err := readPublicKeyfile(filepath.Join(dir, "coldkeypub.txt"))
	if err != nil {
		return nil, fmt.Errorf("load coldkeypub: %w", err)
	}

	w := &Wallet{
		Name:           name,
		Path:           root,
		HotkeyName:     hotkey,
		coldkeyAddress: pub,
	}

	if hotkey != "" {
		hotDir := filepath.Join(dir, "hotkeys")
		addr, err := readPublicKeyfile(filepath.Join(hotDir, hotkey+"pub.txt"))
		if errors.Is(err, ErrNotFound) {
			addr, err = readPublicKeyfile(filepath.Join(hotDir, hotkey))
		}
		if err != nil {
			return nil, fmt.Errorf("load hotkey %s: %w", hotkey, err)
		}
		w.hotkeyAddress = addr
	}

	return w, nil
}

// readPublicKeyfile extracts the ss58 address from a plaintext keyfile.
// Older wallets store the bare address instead of JSON.
func readPublicKeyfile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return "", err
	}
	data = bytes.TrimSpace(data)

	var addr string
	switch {
	case bytes.HasPrefix(data, []byte("{")):
		var kp Keypair
		if err := json.Unmarshal(data, &kp); err != nil {
			return "", fmt.Errorf("parse %s: %w", path, err)
		}
		addr = kp.SS58Address
	case bytes.HasPrefix(data, []byte(naclPrefix)):
		return "", fmt.Errorf("%w: %s is encrypted", ErrUnsupportedKeyfile, path)
	default:
		addr = string(data)
	}

	if err := ValidateAddress(addr); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return addr, nil
}

// Unlock decrypts the coldkey file of w.
func (p *KeyfileProvider) Unlock(w *Wallet, password string) error {
	path := filepath.Join(w.Path, w.Name, "coldkey")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return err
	}
	data = bytes.TrimSpace(data)

	var plain []byte
	switch {
	case bytes.HasPrefix(data, []byte(naclPrefix)):
		plain, err = p.decryptNaCl(data[len(naclPrefix):], password)
		if err != nil {
			return err
		}
	case bytes.HasPrefix(data, []byte("{")):
		plain = data
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKeyfile, path)
	}

	var kp Keypair
	if err := json.Unmarshal(plain, &kp); err != nil {
		return fmt.Errorf("parse coldkey: %w", err)
	}
	if kp.SecretSeed == "" {
		return fmt.Errorf("%w: coldkey has no secret seed", ErrUnsupportedKeyfile)
	}
	if kp.SS58Address != w.coldkeyAddress {
		return fmt.Errorf("coldkey %s does not match coldkeypub %s", kp.SS58Address, w.coldkeyAddress)
	}

	w.coldkey = &kp
	return nil
}

func (p *KeyfileProvider) decryptNaCl(data []byte, password string) ([]byte, error) {
	if len(data) < 24+secretbox.Overhead {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrUnsupportedKeyfile)
	}

	var key [32]byte
	copy(key[:], deriveKey(password, p.KDF))

	var nonce [24]byte
	copy(nonce[:], data[:24])

	plain, ok := secretbox.Open(nil, data[24:], &nonce, &key)
	if !ok {
		return nil, ErrBadPassword
	}
	return plain, nil
}

func deriveKey(password string, kdf KDFParams) []byte {
	return argon2.Key([]byte(password), naclSalt, kdf.Time, kdf.MemoryKiB, kdf.Threads, 32)
}

// EncryptKeyfile produces a $NACL keyfile body for kp. Used to provision
// wallets and in tests.
func EncryptKeyfile(kp Keypair, password string, kdf KDFParams, nonce [24]byte) ([]byte, error) {
	plain, err := json.Marshal(kp)
	if err != nil {
		return nil, err
	}

	var key [32]byte
	copy(key[:], deriveKey(password, kdf))

	out := append([]byte(naclPrefix), nonce[:]...)
	return secretbox.Seal(out, plain, &nonce, &key), nil
}

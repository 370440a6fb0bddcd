package wallet

import (
	"errors"
)

// Errors returned by providers.
var (
	ErrBadPassword        = errors.New("wallet: bad password")
	ErrNotFound           = errors.New("wallet: keyfile not found")
	ErrUnsupportedKeyfile = errors.New("wallet: unsupported keyfile format")
	ErrInvalidAddress     = errors.New("wallet: invalid ss58 address")
	ErrNoHotkey           = errors.New("wallet: no hotkey loaded")
)

// Provider loads wallets and unlocks their coldkey.
type Provider interface {
	// Load reads public key material for wallet name under path.
	// hotkey may be empty when no hotkey is needed.
	Load(name, path, hotkey string) (*Wallet, error)

	// Unlock decrypts the coldkey of w with password.
	Unlock(w *Wallet, password string) error
}

// Keypair is the decrypted keyfile payload.
type Keypair struct {
	AccountID   string `json:"accountId"`
	PublicKey   string `json:"publicKey"`
	SecretSeed  string `json:"secretSeed"`
	SS58Address string `json:"ss58Address"`
}

// Wallet is a loaded coldkey/hotkey pair. It implements chain.Signer.
type Wallet struct {
	Name       string
	Path       string
	HotkeyName string

	coldkeyAddress string
	hotkeyAddress  string
	coldkey        *Keypair
}

// ColdkeyAddress returns the SS58 address of the coldkey.
func (w *Wallet) ColdkeyAddress() string {
	return w.coldkeyAddress
}

// HotkeyAddress returns the SS58 address of the hotkey, or ErrNoHotkey.
func (w *Wallet) HotkeyAddress() (string, error) {
	if w.hotkeyAddress == "" {
		return "", ErrNoHotkey
	}
	return w.hotkeyAddress, nil
}

// Unlocked reports whether the coldkey secret is available.
func (w *Wallet) Unlocked() bool {
	return w.coldkey != nil
}

// SecretSeed returns the coldkey seed, or "" while locked.
func (w *Wallet) SecretSeed() string {
	if w.coldkey == nil {
		return ""
	}
	return w.coldkey.SecretSeed
}

// Lock drops the decrypted coldkey.
func (w *Wallet) Lock() {
	w.coldkey = nil
}

func (w *Wallet) String() string {
	return w.Name + "/" + w.HotkeyName
}

package wallet

import "fmt"

// StaticProvider serves a wallet from memory. It backs --coldkey-address
// overrides, where no keyfiles exist, and tests.
type StaticProvider struct {
	ColdkeyAddress string
	HotkeyAddress  string
	// Password and Seed are required for Unlock; a provider without a seed is read-only.
	Password string
	Seed     string
}

// Load returns a wallet with the configured addresses.
func (p *StaticProvider) Load(name, path, hotkey string) (*Wallet, error) {
	if err := ValidateAddress(p.ColdkeyAddress); err != nil {
		return nil, fmt.Errorf("coldkey: %w", err)
	}
	if p.HotkeyAddress != "" {
		if err := ValidateAddress(p.HotkeyAddress); err != nil {
			return nil, fmt.Errorf("hotkey: %w", err)
		}
	}
	return &Wallet{
		Name:           name,
		Path:           path,
		HotkeyName:     hotkey,
		coldkeyAddress: p.ColdkeyAddress,
		hotkeyAddress:  p.HotkeyAddress,
	}, nil
}

// Unlock checks password and attaches the configured seed.
func (p *StaticProvider) Unlock(w *Wallet, password string) error {
	if p.Seed == "" {
		return fmt.Errorf("%w: read-only wallet", ErrUnsupportedKeyfile)
	}
	if password != p.Password {
		return ErrBadPassword
	}
	w.coldkey = &Keypair{SS58Address: w.coldkeyAddress, SecretSeed: p.Seed}
	return nil
}

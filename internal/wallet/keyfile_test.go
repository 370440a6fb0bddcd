package wallet

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bobAddress = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"

// cheapKDF keeps argon2 fast in tests.
var cheapKDF = KDFParams{Time: 1, MemoryKiB: 64, Threads: 1}

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

// newWalletDir lays out a wallet named "miner" with hotkey "default".
func newWalletDir(t *testing.T, coldkey []byte) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "miner")

	writeJSON(t, filepath.Join(dir, "coldkeypub.txt"), Keypair{SS58Address: aliceAddress, PublicKey: "0x" + alicePubkey})
	writeJSON(t, filepath.Join(dir, "hotkeys", "default"), Keypair{SS58Address: bobAddress, SecretSeed: "0xhot"})
	if coldkey != nil {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "coldkey"), coldkey, 0o600))
	}
	return root
}

func encryptedColdkey(t *testing.T, password string) []byte {
	t.Helper()
	var nonce [24]byte
	copy(nonce[:], "0123456789abcdefghijklmn")
	data, err := EncryptKeyfile(Keypair{SS58Address: aliceAddress, SecretSeed: "0xcold"}, password, cheapKDF, nonce)
	require.NoError(t, err)
	return data
}

func TestKeyfileProvider_LoadAndUnlock(t *testing.T) {
	root := newWalletDir(t, encryptedColdkey(t, "hunter2"))
	p := &KeyfileProvider{KDF: cheapKDF}

	w, err := p.Load("miner", root, "default")
	require.NoError(t, err)

	assert.Equal(t, aliceAddress, w.ColdkeyAddress())
	hot, err := w.HotkeyAddress()
	require.NoError(t, err)
	assert.Equal(t, bobAddress, hot)
	assert.False(t, w.Unlocked())
	assert.Empty(t, w.SecretSeed())

	require.NoError(t, p.Unlock(w, "hunter2"))
	assert.True(t, w.Unlocked())
	assert.Equal(t, "0xcold", w.SecretSeed())

	w.Lock()
	assert.False(t, w.Unlocked())
}

func TestKeyfileProvider_BadPassword(t *testing.T) {
	root := newWalletDir(t, encryptedColdkey(t, "hunter2"))
	p := &KeyfileProvider{KDF: cheapKDF}

	w, err := p.Load("miner", root, "")
	require.NoError(t, err)

	err = p.Unlock(w, "wrong")
	assert.ErrorIs(t, err, ErrBadPassword)
	assert.False(t, w.Unlocked())
}

func TestKeyfileProvider_PlaintextColdkey(t *testing.T) {
	plain, _ := json.Marshal(Keypair{SS58Address: aliceAddress, SecretSeed: "0xplain"})
	root := newWalletDir(t, plain)
	p := &KeyfileProvider{KDF: cheapKDF}

	w, err := p.Load("miner", root, "")
	require.NoError(t, err)
	require.NoError(t, p.Unlock(w, ""))
	assert.Equal(t, "0xplain", w.SecretSeed())

	_, err = w.HotkeyAddress()
	assert.ErrorIs(t, err, ErrNoHotkey)
}

func TestKeyfileProvider_MismatchedColdkey(t *testing.T) {
	plain, _ := json.Marshal(Keypair{SS58Address: bobAddress, SecretSeed: "0xother"})
	root := newWalletDir(t, plain)
	p := &KeyfileProvider{KDF: cheapKDF}

	w, err := p.Load("miner", root, "")
	require.NoError(t, err)
	assert.Error(t, p.Unlock(w, ""))
}

func TestKeyfileProvider_Missing(t *testing.T) {
	root := newWalletDir(t, nil)
	p := &KeyfileProvider{KDF: cheapKDF}

	_, err := p.Load("nobody", root, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = p.Load("miner", root, "absent")
	assert.ErrorIs(t, err, ErrNotFound)

	w, err := p.Load("miner", root, "")
	require.NoError(t, err)
	assert.ErrorIs(t, p.Unlock(w, "x"), ErrNotFound)
}

func TestKeyfileProvider_BareAddressPubfile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "legacy")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coldkeypub.txt"), []byte(aliceAddress+"\n"), 0o600))

	w, err := NewKeyfileProvider().Load("legacy", root, "")
	require.NoError(t, err)
	assert.Equal(t, aliceAddress, w.ColdkeyAddress())
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/.bittensor/wallets")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".bittensor", "wallets"), got)

	got, err = ExpandPath("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".bittensor", "wallets"), got)

	got, err = ExpandPath("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}

func TestStaticProvider(t *testing.T) {
	p := &StaticProvider{ColdkeyAddress: aliceAddress, HotkeyAddress: bobAddress, Password: "pw", Seed: "0xseed"}

	w, err := p.Load("static", "", "default")
	require.NoError(t, err)
	assert.ErrorIs(t, p.Unlock(w, "nope"), ErrBadPassword)
	require.NoError(t, p.Unlock(w, "pw"))
	assert.Equal(t, "0xseed", w.SecretSeed())

	readOnly := &StaticProvider{ColdkeyAddress: aliceAddress}
	w, err = readOnly.Load("ro", "", "")
	require.NoError(t, err)
	assert.Error(t, readOnly.Unlock(w, ""))

	_, err = (&StaticProvider{ColdkeyAddress: "garbage"}).Load("bad", "", "")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

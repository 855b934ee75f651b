package crypto

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTripsThroughBech32(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	addr := key.PubKey().Address()
	require.Equal(t, AccountPrefix, addr.Prefix())

	decoded, err := DecodeAddress(addr.String())
	require.NoError(t, err)
	require.True(t, addr.Equal(decoded))
	require.Equal(t, addr.Raw(), decoded.Raw())

	text, err := addr.MarshalText()
	require.NoError(t, err)
	var viaText Address
	require.NoError(t, viaText.UnmarshalText(text))
	require.Equal(t, addr.String(), viaText.String())
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	_, err := DecodeAddress("flash1notvalid")
	require.Error(t, err)
}

func TestSignatureRecoversSigner(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	payload := []byte(`{"amount":42}`)
	sig, err := key.Sign(payload)
	require.NoError(t, err)

	signer, err := RecoverAddress(payload, sig)
	require.NoError(t, err)
	require.True(t, signer.Equal(key.PubKey().Address()))

	other, err := RecoverAddress([]byte(`{"amount":43}`), sig)
	require.NoError(t, err)
	require.False(t, other.Equal(signer))

	_, err = RecoverAddress(payload, sig[:10])
	require.Error(t, err)
}

func TestDeriveAddressIsDeterministic(t *testing.T) {
	program := []byte("reserve")
	first, bump, err := DeriveAddress(program, []byte("vault"))
	require.NoError(t, err)
	second, bump2, err := DeriveAddress(program, []byte("vault"))
	require.NoError(t, err)

	require.Equal(t, bump, bump2)
	require.True(t, first.Equal(second))
	require.Equal(t, ProgramPrefix, first.Prefix())
	require.True(t, first.Equal(CreateDerivedAddress(program, bump, []byte("vault"))))

	config, _, err := DeriveAddress(program, []byte("config"))
	require.NoError(t, err)
	require.False(t, first.Equal(config))
}

func TestDerivedAddressSeparatesSeedSplits(t *testing.T) {
	program := []byte("reserve")
	joined := CreateDerivedAddress(program, 255, []byte("ab"), []byte("c"))
	split := CreateDerivedAddress(program, 255, []byte("a"), []byte("bc"))
	require.False(t, joined.Equal(split))
	require.False(t, joined.Equal(CreateDerivedAddress(program, 255, []byte("abc"))))
	require.False(t, CreateDerivedAddress([]byte("res"), 255, []byte("ervevault")).Equal(CreateDerivedAddress(program, 255, []byte("vault"))))
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "operator.json")
	require.NoError(t, SaveToKeystore(path, key, "hunter2", LightCost))

	loaded, err := LoadFromKeystore(path, "hunter2")
	require.NoError(t, err)
	require.Equal(t, key.Bytes(), loaded.Bytes())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
}

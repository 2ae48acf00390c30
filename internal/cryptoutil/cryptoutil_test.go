package cryptoutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveMasterKeyDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0x42}, SaltSize)
	k1, err := DeriveMasterKey([]byte("correct horse battery staple"), salt)
	require.NoError(t, err)
	k2, err := DeriveMasterKey([]byte("correct horse battery staple"), salt)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, MasterKeySize)
}

func TestDeriveMasterKeyRejectsBadInput(t *testing.T) {
	salt := bytes.Repeat([]byte{0x01}, SaltSize)
	_, err := DeriveMasterKey(nil, salt)
	assert.Error(t, err)

	_, err = DeriveMasterKey([]byte("pw"), []byte("short"))
	assert.Error(t, err)
}

func TestDeriveSubkeyDeterministicAndDistinct(t *testing.T) {
	master := bytes.Repeat([]byte{0x07}, MasterKeySize)
	vaultID := bytes.Repeat([]byte{0xAA}, 16)

	vk1, err := DeriveVaultKey(master, vaultID)
	require.NoError(t, err)
	vk2, err := DeriveVaultKey(master, vaultID)
	require.NoError(t, err)
	assert.Equal(t, vk1, vk2)

	otherVaultID := bytes.Repeat([]byte{0xBB}, 16)
	vk3, err := DeriveVaultKey(master, otherVaultID)
	require.NoError(t, err)
	assert.NotEqual(t, vk1, vk3)

	fileID1 := bytes.Repeat([]byte{0x01}, 16)
	fileID2 := bytes.Repeat([]byte{0x02}, 16)
	fk1, err := DeriveFileKey(vk1, fileID1)
	require.NoError(t, err)
	fk2, err := DeriveFileKey(vk1, fileID2)
	require.NoError(t, err)
	assert.NotEqual(t, fk1, fk2)
}

func TestAESGCMRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x09}, 32)
	eng, err := NewEngine(AlgAESGCM, key)
	require.NoError(t, err)

	nonce, err := NewNonce()
	require.NoError(t, err)

	plaintext := []byte("hello\n")
	ad := []byte(`{"version":1}`)

	ct := eng.Seal(nonce, plaintext, ad)
	pt, err := eng.Open(nonce, ct, ad)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestAESGCMDetectsTampering(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 32)
	eng, err := NewEngine(AlgAESGCM, key)
	require.NoError(t, err)

	nonce, err := NewNonce()
	require.NoError(t, err)
	ad := []byte("header")
	ct := eng.Seal(nonce, []byte("secret note"), ad)

	tamperedCT := append([]byte{}, ct...)
	tamperedCT[0] ^= 0x01
	_, err = eng.Open(nonce, tamperedCT, ad)
	assert.ErrorIs(t, err, ErrAuthFailed)

	tamperedNonce := append([]byte{}, nonce...)
	tamperedNonce[0] ^= 0x01
	_, err = eng.Open(tamperedNonce, ct, ad)
	assert.ErrorIs(t, err, ErrAuthFailed)

	tamperedAD := append([]byte{}, ad...)
	tamperedAD[0] ^= 0x01
	_, err = eng.Open(nonce, ct, tamperedAD)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestChaCha20Poly1305RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x22}, 32)
	eng, err := NewEngine(AlgChaCha20P1, key)
	require.NoError(t, err)

	nonce, err := NewNonce()
	require.NoError(t, err)
	ct := eng.Seal(nonce, []byte("ideas"), nil)
	pt, err := eng.Open(nonce, ct, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("ideas"), pt)
}

func TestSIVTagDeterministicAndSensitive(t *testing.T) {
	key := bytes.Repeat([]byte{0x33}, 64)
	siv, err := NewSIVTag(key)
	require.NoError(t, err)

	data := []byte("vault-identifier-bytes!")
	ad := []byte("context")

	tag1 := siv.Tag(data, ad)
	tag2 := siv.Tag(data, ad)
	assert.Equal(t, tag1, tag2)
	assert.True(t, siv.Verify(data, tag1, ad))

	tampered := append([]byte{}, data...)
	tampered[0] ^= 0xFF
	assert.False(t, siv.Verify(tampered, tag1, ad))
}

func TestZeroWipesBuffer(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}

func TestSecretBytesCloseIsIdempotent(t *testing.T) {
	s := NewSecret([]byte{9, 9, 9})
	assert.Equal(t, []byte{9, 9, 9}, s.Bytes())
	s.Close()
	assert.Nil(t, s.Bytes())
	s.Close()
}

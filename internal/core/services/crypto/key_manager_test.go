package crypto

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) KeyManagerConfig {
	dir := t.TempDir()
	return KeyManagerConfig{
		RootKeyPath:     filepath.Join(dir, "root_key.pem"),
		SessionKeyPath:  filepath.Join(dir, "session_key.bin"),
		MetadataPath:    filepath.Join(dir, "key_metadata.json"),
		SessionLifetime: 30 * time.Minute,
		MaxCommandsPer:  1000,
		GracePeriod:     5 * time.Minute,
	}
}

func TestNewKeyManager_ProvisionsRootKeyWhenAbsent(t *testing.T) {
	cfg := testConfig(t)
	km, err := NewKeyManager(cfg)
	require.NoError(t, err)
	defer km.Close()

	ctx := km.Context()
	require.Equal(t, domain.KeyActive, ctx.Meta.State)
	require.NotEqual(t, [32]byte{}, ctx.SessionKey)
}

func TestNewKeyManager_StrictModeErrorsWhenRootKeyMissing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Strict = true
	_, err := NewKeyManager(cfg)
	require.Error(t, err)
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewKeyManager_ReloadsPersistedRootKey(t *testing.T) {
	cfg := testConfig(t)
	km1, err := NewKeyManager(cfg)
	require.NoError(t, err)
	root1 := km1.rootKey
	km1.Close()

	km2, err := NewKeyManager(cfg)
	require.NoError(t, err)
	defer km2.Close()
	require.Equal(t, root1, km2.rootKey)
}

func TestEnvelope_RoundTripAndBitFlipRejected(t *testing.T) {
	cfg := testConfig(t)
	km, err := NewKeyManager(cfg)
	require.NoError(t, err)
	defer km.Close()

	env := km.CurrentEnvelope()
	nonce := [12]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	ciphertext := env.EncryptWithNonce(nonce, []byte("hello drone"))

	pt, err := env.Decrypt(nonce, ciphertext)
	require.NoError(t, err)
	require.Equal(t, "hello drone", string(pt))

	flipped := append([]byte(nil), ciphertext...)
	flipped[0] ^= 0xFF
	_, err = env.Decrypt(nonce, flipped)
	require.Error(t, err)
	var cryptoErr *domain.CryptoError
	require.ErrorAs(t, err, &cryptoErr)
	require.Equal(t, domain.CryptoTagMismatch, cryptoErr.Kind)
}

func TestRotate_PreviousGenerationEntersGrace(t *testing.T) {
	cfg := testConfig(t)
	cfg.GracePeriod = 50 * time.Millisecond
	km, err := NewKeyManager(cfg)
	require.NoError(t, err)
	defer km.Close()

	oldGen := km.Context().Meta.Generation
	require.NoError(t, km.Rotate(context.Background(), "scheduled"))

	newCtx := km.Context()
	require.Equal(t, oldGen+1, newCtx.Meta.Generation)
	require.True(t, newCtx.HasPrevKey)
	require.NotNil(t, km.GraceEnvelope())

	time.Sleep(200 * time.Millisecond)
	require.Nil(t, km.GraceEnvelope())
}

func TestRevoke_ClearsGraceAndMarksRevoked(t *testing.T) {
	cfg := testConfig(t)
	km, err := NewKeyManager(cfg)
	require.NoError(t, err)
	defer km.Close()

	require.NoError(t, km.Rotate(context.Background(), "scheduled"))
	require.NoError(t, km.Revoke(context.Background()))

	ctx := km.Context()
	require.Equal(t, domain.KeyRevoked, ctx.Meta.State)
	require.Nil(t, km.GraceEnvelope())
}

package secrets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsundqvist/prefect/internal/store"
	"github.com/rsundqvist/prefect/pkg/schema"
)

func newVault(t *testing.T) *AESVault {
	t.Helper()
	v, err := NewAESVault(VaultConfig{MasterKey: make([]byte, 32)})
	require.NoError(t, err)
	return v
}

// --- Key derivation ---

func TestNewAESVault_MasterKeyWrongSize(t *testing.T) {
	_, err := NewAESVault(VaultConfig{MasterKey: make([]byte, 16)})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeVault, err.(*schema.APIError).Code)
}

func TestNewAESVault_PassphraseRequiresSalt(t *testing.T) {
	_, err := NewAESVault(VaultConfig{Passphrase: "hunter2"})
	assert.Error(t, err)
}

func TestKeyFromBase64(t *testing.T) {
	key, err := KeyFromBase64(base64.StdEncoding.EncodeToString(make([]byte, 32)))
	require.NoError(t, err)
	assert.Len(t, key, 32)

	_, err = KeyFromBase64("not-base64!!")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeVault, err.(*schema.APIError).Code)
}

func TestNewAESVault_PassphraseDerivation(t *testing.T) {
	v, err := NewAESVault(VaultConfig{Passphrase: "hunter2", Salt: []byte("salty")})
	require.NoError(t, err)

	ct, err := v.Seal([]byte("payload"))
	require.NoError(t, err)

	same, err := NewAESVault(VaultConfig{Passphrase: "hunter2", Salt: []byte("salty")})
	require.NoError(t, err)
	pt, err := same.Open(ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), pt)
}

// --- Seal and Open ---

func TestSealOpen_RoundTrip(t *testing.T) {
	v := newVault(t)

	ct, err := v.Seal([]byte(`{"token":"abc"}`))
	require.NoError(t, err)
	assert.NotContains(t, string(ct), "abc")

	pt, err := v.Open(ct)
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"abc"}`, string(pt))
}

func TestOpen_WrongKeyFails(t *testing.T) {
	v := newVault(t)
	ct, err := v.Seal([]byte("data"))
	require.NoError(t, err)

	otherKey := make([]byte, 32)
	otherKey[0] = 1
	other, err := NewAESVault(VaultConfig{MasterKey: otherKey})
	require.NoError(t, err)

	_, err = other.Open(ct)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeVault, err.(*schema.APIError).Code)
}

func TestOpen_TooShort(t *testing.T) {
	v := newVault(t)
	_, err := v.Open([]byte("tiny"))
	assert.Error(t, err)
}

// --- Sealed documents ---

func TestSealedDocuments_RoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	docs := NewSealedDocuments(newVault(t), s)
	ctx := context.Background()

	b := &store.BlockDocument{
		ID:        uuid.New().String(),
		Name:      "aws-creds",
		BlockType: "aws-credentials",
		Data:      json.RawMessage(`{"secret_access_key":"shhh"}`),
	}
	require.NoError(t, docs.Create(ctx, b))

	// The persisted row holds only the sealed envelope.
	raw, err := s.GetBlockDocument(ctx, b.ID)
	require.NoError(t, err)
	assert.NotContains(t, string(raw.Data), "shhh")
	assert.Contains(t, string(raw.Data), "ciphertext")

	got, err := docs.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"secret_access_key":"shhh"}`, string(got.Data))
}

func TestSealedDocuments_EmptyDataPassthrough(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	docs := NewSealedDocuments(newVault(t), s)
	ctx := context.Background()

	b := &store.BlockDocument{ID: uuid.New().String(), IsAnonymous: true}
	require.NoError(t, docs.Create(ctx, b))

	got, err := docs.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Data)
}

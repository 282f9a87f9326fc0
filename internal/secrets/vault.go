package secrets

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/rsundqvist/prefect/internal/store"
)

// Vault seals and opens block document data at rest.
// Data is encrypted before persistence and only decrypted in memory.
type Vault interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(ciphertext []byte) ([]byte, error)
}

// DocumentStore is the minimal persistence interface needed by the sealed
// document layer. Satisfied by store.Store.
type DocumentStore interface {
	CreateBlockDocument(ctx context.Context, b *store.BlockDocument) error
	GetBlockDocument(ctx context.Context, id string) (*store.BlockDocument, error)
}

// sealedEnvelope is the persisted wrapper around encrypted document data.
// Ciphertext is base64 so the column stays valid JSON text.
type sealedEnvelope struct {
	Ciphertext string `json:"ciphertext"`
}

// SealedDocuments wraps a document store with transparent data encryption.
type SealedDocuments struct {
	vault Vault
	store DocumentStore
}

// NewSealedDocuments creates the encrypting wrapper.
func NewSealedDocuments(v Vault, s DocumentStore) *SealedDocuments {
	return &SealedDocuments{vault: v, store: s}
}

// Create seals the document's data and persists it. The caller's document is
// mutated to the sealed form.
func (s *SealedDocuments) Create(ctx context.Context, b *store.BlockDocument) error {
	if len(b.Data) > 0 {
		ct, err := s.vault.Seal(b.Data)
		if err != nil {
			return err
		}
		env, err := json.Marshal(sealedEnvelope{
			Ciphertext: base64.StdEncoding.EncodeToString(ct),
		})
		if err != nil {
			return err
		}
		b.Data = env
	}
	return s.store.CreateBlockDocument(ctx, b)
}

// Get loads the document and opens its sealed data.
func (s *SealedDocuments) Get(ctx context.Context, id string) (*store.BlockDocument, error) {
	b, err := s.store.GetBlockDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(b.Data) == 0 {
		return b, nil
	}
	var env sealedEnvelope
	if err := json.Unmarshal(b.Data, &env); err != nil || env.Ciphertext == "" {
		// Pre-encryption documents pass through untouched.
		return b, nil
	}
	ct, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, err
	}
	plaintext, err := s.vault.Open(ct)
	if err != nil {
		return nil, err
	}
	b.Data = plaintext
	return b, nil
}

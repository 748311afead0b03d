// Package signature provides the deterministic signing primitives backing
// receipts and credentials.
//
// Signatures are HMAC-SHA256 over canonical payloads. This proves "signed with
// knowledge of the shared secret", not "signed by this specific agent's key";
// a production trust root would resolve each DID to its own public key and
// verify with the DID method's native scheme (Ed25519 for did:key) before this
// service is used as a cross-organization trust anchor.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/hkdf"

	"trustledger/pkg/domain"
)

// SecretSource supplies the process-wide signing secret. Injected at
// construction so tests and future secret managers can swap implementations;
// never a process global.
type SecretSource interface {
	SigningSecret() (string, error)
}

// StaticSecret is a SecretSource holding a literal value, used for config-fed
// secrets and tests.
type StaticSecret string

func (s StaticSecret) SigningSecret() (string, error) {
	if s == "" {
		return "", fmt.Errorf("signing secret is empty")
	}
	return string(s), nil
}

// Signer holds the derived signing keys. Construction fails when the secret is
// absent; main treats that as fatal.
type Signer struct {
	receiptKey    []byte
	credentialKey []byte
}

// New derives the receipt and credential keys from the master secret via
// HKDF-SHA256. Distinct info strings keep the two signature domains separate:
// a receipt signature can never verify as a credential signature.
func New(source SecretSource) (*Signer, error) {
	secret, err := source.SigningSecret()
	if err != nil {
		return nil, fmt.Errorf("signature module: %w", err)
	}

	receiptKey, err := deriveKey(secret, "trustledger/receipt/v1")
	if err != nil {
		return nil, err
	}
	credentialKey, err := deriveKey(secret, "trustledger/credential/v1")
	if err != nil {
		return nil, err
	}

	return &Signer{receiptKey: receiptKey, credentialKey: credentialKey}, nil
}

func deriveKey(secret, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}

// Sign produces a deterministic hex signature over data. Same input always
// yields the same signature, so verification reduces to an equality check.
func (s *Signer) Sign(data string) string {
	mac := hmac.New(sha256.New, s.receiptKey)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares in constant time. Never errors;
// any mismatch, including malformed input, is simply false.
func (s *Signer) Verify(data, signature string) bool {
	expected := s.Sign(data)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignCredential signs the credential's semantic fields. The payload is
// serialized to RFC 8785 canonical JSON first, so field order in the Go struct
// or any intermediate map cannot change the signature.
func (s *Signer) SignCredential(payload any) (string, error) {
	canonical, err := canonicalize(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, s.credentialKey)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyCredential re-serializes the payload canonically and compares digests.
// Mutating any signed field, including nested data, invalidates the signature.
// Never errors; serialization failures are false.
func (s *Signer) VerifyCredential(payload any, signature string) bool {
	expected, err := s.SignCredential(payload)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Canonical returns the RFC 8785 canonical JSON encoding of v, used by
// receipt producers to build the exact bytes the ledger will verify.
func Canonical(v any) ([]byte, error) {
	return canonicalize(v)
}

func canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return canonical, nil
}

// HashArtifact content-hashes off-band artifact bytes for linking to receipts.
func HashArtifact(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidDID reports whether s is structurally a DID. No resolution happens.
func ValidDID(s string) bool {
	return domain.ValidDID(s)
}

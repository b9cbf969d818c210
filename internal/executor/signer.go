package executor

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strconv"
	"time"
)

// signatureMaxSkew is how far a signed timestamp may drift from the
// verifier's clock, in either direction.
const signatureMaxSkew = 300 * time.Second

// Signer produces a signature binding a chat identity to a timestamp,
// proving to a device executor that the command came from the bridge.
type Signer interface {
	Sign(chatID string, timestamp int64) (string, error)
}

// ECDSASigner signs with a P-256 private key. The signed payload is
// "{chat_id}:{timestamp}" hashed with SHA-256; the signature travels
// base64-encoded in ASN.1 form.
type ECDSASigner struct {
	key *ecdsa.PrivateKey
}

// NewECDSASigner loads a PEM-encoded EC private key from disk.
//
// Parameters:
//   - path: PEM file holding an EC PRIVATE KEY or PKCS#8 block
//
// Returns:
//   - *ECDSASigner: Ready signer
//   - error: Read or parse failure
func NewECDSASigner(path string) (*ECDSASigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in %s", ErrInvalidKey, path)
	}

	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		parsed, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if pkcs8Err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
		ecKey, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an EC key", ErrInvalidKey)
		}
		key = ecKey
	}

	return &ECDSASigner{key: key}, nil
}

// NewECDSASignerFromKey wraps an already-loaded private key.
func NewECDSASignerFromKey(key *ecdsa.PrivateKey) *ECDSASigner {
	return &ECDSASigner{key: key}
}

// Sign signs "{chat_id}:{timestamp}" and returns the base64 signature.
func (s *ECDSASigner) Sign(chatID string, timestamp int64) (string, error) {
	digest := signingDigest(chatID, timestamp)
	sig, err := ecdsa.SignASN1(rand.Reader, s.key, digest)
	if err != nil {
		return "", fmt.Errorf("sign command: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// PublicKey returns the verification half of the signing key.
func (s *ECDSASigner) PublicKey() *ecdsa.PublicKey {
	return &s.key.PublicKey
}

// NoopSigner signs nothing. It is the degraded mode used when no
// signing key is configured, paired with a verifier that skips checks.
type NoopSigner struct{}

// Sign returns an empty signature.
func (NoopSigner) Sign(chatID string, timestamp int64) (string, error) {
	return "", nil
}

// Verifier checks command signatures on the device-agent side.
//
// A nil public key puts the verifier in skip mode: every signature is
// accepted. This mirrors the signer's degraded mode so a deployment
// without keys still works end to end.
type Verifier struct {
	key *ecdsa.PublicKey
	now func() time.Time
}

// NewVerifier creates a verifier for the given public key. A nil key
// disables verification.
func NewVerifier(key *ecdsa.PublicKey) *Verifier {
	return &Verifier{key: key, now: time.Now}
}

// NewVerifierFromFile loads a PEM-encoded EC public key from disk.
func NewVerifierFromFile(path string) (*Verifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read verification key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in %s", ErrInvalidKey, path)
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an EC public key", ErrInvalidKey)
	}
	return NewVerifier(key), nil
}

// Verify checks a command signature and its timestamp freshness.
//
// Parameters:
//   - chatID: Chat identity the signature binds
//   - timestamp: Unix seconds the command was signed at
//   - signature: Base64 ASN.1 signature from the command request
//
// Returns:
//   - error: ErrStaleTimestamp outside the 300 second window,
//     ErrBadSignature on mismatch, nil in skip mode
func (v *Verifier) Verify(chatID string, timestamp int64, signature string) error {
	if v.key == nil {
		return nil
	}

	skew := v.now().Unix() - timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(signatureMaxSkew.Seconds()) {
		return fmt.Errorf("%w: %d seconds", ErrStaleTimestamp, skew)
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	if !ecdsa.VerifyASN1(v.key, signingDigest(chatID, timestamp), sig) {
		return ErrBadSignature
	}
	return nil
}

// signingDigest hashes the canonical signed payload.
func signingDigest(chatID string, timestamp int64) []byte {
	payload := chatID + ":" + strconv.FormatInt(timestamp, 10)
	digest := sha256.Sum256([]byte(payload))
	return digest[:]
}

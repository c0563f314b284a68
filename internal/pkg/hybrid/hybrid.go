// Package hybrid implements the two-layer payload protection used for
// encrypted code retrieval.
//
// Layer one applies an RSA private-key operation so holders of the matching
// public key can recover the payload; its output travels as base64 text.
// Layer two wraps that text with AES-256-GCM under a key derived from a
// shared secret, so only callers who know the secret can remove the outer
// layer.
package hybrid

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// Wire format (text):
//
//	base64(iv) ":" base64(tag) ":" base64(ciphertext)
//
// The iv is 16 bytes and the tag is the 16-byte GCM authentication tag.
const (
	ivSize    = 16
	tagSize   = 16
	aesKeyLen = 32

	wireSegments = 3
	segmentSep   = ":"
)

const (
	rsaKeyBits = 2048

	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

// scryptSalt is fixed so both peers derive the same key from the shared secret.
var scryptSalt = []byte("salt")

var (
	// ErrSecretRequired indicates an empty shared secret.
	ErrSecretRequired = errors.New("hybrid: secret is required")
	// ErrPlaintextEmpty indicates an empty plaintext input.
	ErrPlaintextEmpty = errors.New("hybrid: plaintext is empty")
	// ErrPayloadTooLarge indicates the payload exceeds the RSA block capacity.
	ErrPayloadTooLarge = errors.New("hybrid: payload too large")
	// ErrMalformedPayload indicates the wire payload does not match the expected format.
	ErrMalformedPayload = errors.New("hybrid: malformed payload")
	// ErrDecryptFailed indicates decryption failure.
	ErrDecryptFailed = errors.New("hybrid: decrypt failed")
)

// Engine holds the process-lifetime RSA key pair and the derived AES key.
//
// The key pair is generated at construction and never persisted, so payloads
// protected by one process cannot be unwrapped after a restart.
type Engine struct {
	key    *rsa.PrivateKey
	aesKey []byte
}

// NewEngine derives the AES key from secret and generates a fresh RSA key pair.
func NewEngine(secret string) (*Engine, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretRequired
	}

	aesKey, err := scrypt.Key([]byte(secret), scryptSalt, scryptN, scryptR, scryptP, aesKeyLen)
	if err != nil {
		return nil, fmt.Errorf("hybrid: key derivation failed: %w", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("hybrid: rsa key generation failed: %w", err)
	}

	return &Engine{
		key:    key,
		aesKey: aesKey,
	}, nil
}

// PublicKeyPEM returns the PKCS#1 public key in PEM form.
func (e *Engine) PublicKeyPEM() string {
	der := x509.MarshalPKCS1PublicKey(&e.key.PublicKey)
	block := &pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: der,
	}
	return string(pem.EncodeToMemory(block))
}

// Encrypt applies both layers to plaintext and returns the wire payload.
func (e *Engine) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrPlaintextEmpty
	}

	block, err := e.privateEncrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}

	// The GCM layer seals the base64 text of the RSA block, not the raw
	// block, so peers can feed the opened layer straight into a text-based
	// RSA decrypt.
	inner := []byte(base64.StdEncoding.EncodeToString(block))

	gcm, err := e.newGCM()
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("hybrid: iv generation failed: %w", err)
	}

	// Seal appends the tag to the ciphertext; the wire format carries it as
	// its own segment.
	sealed := gcm.Seal(nil, iv, inner, nil)
	if len(sealed) < tagSize {
		return "", ErrDecryptFailed
	}
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	parts := []string{
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(tag),
		base64.StdEncoding.EncodeToString(ciphertext),
	}
	return strings.Join(parts, segmentSep), nil
}

// Decrypt removes both layers from a wire payload.
//
// Any malformed input, authentication failure, or padding mismatch yields
// ErrDecryptFailed or ErrMalformedPayload without revealing which check
// failed first.
func (e *Engine) Decrypt(payload string) (string, error) {
	iv, tag, ciphertext, err := splitPayload(payload)
	if err != nil {
		return "", err
	}

	gcm, err := e.newGCM()
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	inner, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}

	block, err := base64.StdEncoding.DecodeString(string(inner))
	if err != nil {
		return "", ErrDecryptFailed
	}

	plain, err := e.publicDecrypt(block)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}

func (e *Engine) newGCM() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.aesKey)
	if err != nil {
		return nil, fmt.Errorf("hybrid: aes init failed: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("hybrid: gcm init failed: %w", err)
	}
	return gcm, nil
}

// privateEncrypt applies PKCS#1 v1.5 type-1 padding and the private exponent,
// producing a block only the public key can reverse.
func (e *Engine) privateEncrypt(msg []byte) ([]byte, error) {
	k := e.key.PublicKey.Size()
	if len(msg) > k-11 {
		return nil, ErrPayloadTooLarge
	}

	// EM = 0x00 || 0x01 || PS || 0x00 || M, where PS is 0xFF filler.
	em := make([]byte, k)
	em[1] = 0x01
	for i := 2; i < k-len(msg)-1; i++ {
		em[i] = 0xFF
	}
	copy(em[k-len(msg):], msg)

	m := new(big.Int).SetBytes(em)
	c := new(big.Int).Exp(m, e.key.D, e.key.N)

	return c.FillBytes(make([]byte, k)), nil
}

// publicDecrypt reverses privateEncrypt using the public exponent and strips
// the type-1 padding.
func (e *Engine) publicDecrypt(block []byte) ([]byte, error) {
	k := e.key.PublicKey.Size()
	if len(block) != k {
		return nil, ErrDecryptFailed
	}

	c := new(big.Int).SetBytes(block)
	if c.Cmp(e.key.N) >= 0 {
		return nil, ErrDecryptFailed
	}

	eExp := big.NewInt(int64(e.key.PublicKey.E))
	m := new(big.Int).Exp(c, eExp, e.key.N)
	em := m.FillBytes(make([]byte, k))

	if em[0] != 0x00 || em[1] != 0x01 {
		return nil, ErrDecryptFailed
	}

	sep := -1
	for i := 2; i < len(em); i++ {
		if em[i] == 0x00 {
			sep = i
			break
		}
		if em[i] != 0xFF {
			return nil, ErrDecryptFailed
		}
	}
	if sep < 10 || sep == len(em)-1 {
		return nil, ErrDecryptFailed
	}

	return em[sep+1:], nil
}

func splitPayload(payload string) (iv, tag, ciphertext []byte, err error) {
	parts := strings.Split(payload, segmentSep)
	if len(parts) != wireSegments {
		return nil, nil, nil, ErrMalformedPayload
	}

	iv, err = base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return nil, nil, nil, ErrMalformedPayload
	}

	tag, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return nil, nil, nil, ErrMalformedPayload
	}

	ciphertext, err = base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(ciphertext) == 0 {
		return nil, nil, nil, ErrMalformedPayload
	}

	return iv, tag, ciphertext, nil
}

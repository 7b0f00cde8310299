// Package keystore holds the RSA signing key used to mint JWTs and
// exposes it as a JWKS document for verifiers, per spec.md §4.4/§6.
package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
)

// JWK is a single JSON Web Key.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

// JWKS is a JSON Web Key Set document.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// KeyStore is a process-wide singleton holding the current RSA signing
// key. A real deployment would support rotation (multiple kids); the
// emulator keeps exactly one active key, generated lazily.
type KeyStore struct {
	kid        string
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// Load reads a PEM-encoded RSA private key from path. If the file does
// not exist, a fresh 2048-bit key is generated and persisted to path so
// that subsequent restarts reuse the same key (and therefore the same
// JWKS, which matters for any verifier that cached it).
func Load(path string, kid string) (*KeyStore, error) {
	if kid == "" {
		kid = "sig-1"
	}

	data, err := os.ReadFile(path)
	if err == nil {
		priv, perr := parsePrivateKey(data)
		if perr != nil {
			return nil, fmt.Errorf("keystore: parse %s: %w", path, perr)
		}
		return &KeyStore{kid: kid, privateKey: priv, publicKey: &priv.PublicKey}, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("keystore: read %s: %w", path, err)
	}

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("keystore: generate key: %w", err)
	}
	pemBytes := encodePrivateKey(priv)
	if path != "" {
		if werr := os.WriteFile(path, pemBytes, 0o600); werr != nil {
			return nil, fmt.Errorf("keystore: persist %s: %w", path, werr)
		}
	}
	return &KeyStore{kid: kid, privateKey: priv, publicKey: &priv.PublicKey}, nil
}

// FromPEM builds a KeyStore directly from an in-memory PEM block,
// bypassing disk — used by tests and by cmd/keygen-style callers that
// already hold the key material.
func FromPEM(pemData []byte, kid string) (*KeyStore, error) {
	if kid == "" {
		kid = "sig-1"
	}
	priv, err := parsePrivateKey(pemData)
	if err != nil {
		return nil, err
	}
	return &KeyStore{kid: kid, privateKey: priv, publicKey: &priv.PublicKey}, nil
}

func parsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	if priv, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return priv, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("not a PKCS1 or PKCS8 RSA private key: %w", err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is not of type *rsa.PrivateKey")
	}
	return priv, nil
}

func encodePrivateKey(priv *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
}

// Kid returns the active key id, carried in the JWT header and JWKS.
func (k *KeyStore) Kid() string { return k.kid }

// PrivateKey returns the signing key for jwt.SigningMethodRS256.
func (k *KeyStore) PrivateKey() *rsa.PrivateKey { return k.privateKey }

// PublicKey returns the verification key.
func (k *KeyStore) PublicKey() *rsa.PublicKey { return k.publicKey }

// JWKS renders the public key as a JSON Web Key Set document.
func (k *KeyStore) JWKS() JWKS {
	eBuf := big.NewInt(int64(k.publicKey.E)).Bytes()
	return JWKS{
		Keys: []JWK{{
			Kty: "RSA",
			Kid: k.kid,
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(k.publicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(eBuf),
			Alg: "RS256",
		}},
	}
}

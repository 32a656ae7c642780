package jwtx

import "crypto/ed25519"

// Signer is the interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(IDClaims) (string, error)
	PublicJWK() JWK
	Validate() error
}

// NewSignerEdDSA creates an EdDSA signer from PEM bytes.
// Ed25519 keys must be in PKCS8 format.
func NewSignerEdDSA(kid string, pemKey []byte) (Signer, error) {
	return newEdDSASigner(kid, pemKey)
}

// NewSignerEdDSAFromKey creates an EdDSA signer from an in-memory private
// key, skipping the PEM round trip. The test identity provider uses this
// with a freshly generated key.
func NewSignerEdDSAFromKey(kid string, key ed25519.PrivateKey) (Signer, error) {
	return newEdDSASignerFromKey(kid, key)
}

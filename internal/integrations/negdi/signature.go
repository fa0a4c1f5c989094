package negdi

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSignature = errors.New("invalid order signature")
	ErrInvalidPublicKey = errors.New("invalid negdi public key")
)

// Canonicalize returns the order object without insignificant whitespace. Field order and
// string escapes are kept as the gateway sent them, so the digest covers the signed bytes.
func Canonicalize(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, bytes.TrimSpace(raw)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// VerifySignature checks a base64 ordersign over the SHA-256 digest of the canonical
// order payload. RSA keys use PKCS#1 v1.5, ECDSA keys use ASN.1 signatures.
func VerifySignature(payload []byte, signatureBase64 string, key crypto.PublicKey) bool {
	sig, ok := decodeSignature(signatureBase64)
	if !ok {
		return false
	}
	canonical, err := Canonicalize(payload)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(canonical)

	switch k := key.(type) {
	case *rsa.PublicKey:
		return rsa.VerifyPKCS1v15(k, crypto.SHA256, digest[:], sig) == nil
	case *ecdsa.PublicKey:
		return ecdsa.VerifyASN1(k, digest[:], sig)
	default:
		return false
	}
}

// ParsePublicKey accepts a PEM block (PKIX, PKCS#1 or certificate) or bare base64 DER.
// Literal "\n" sequences, common when keys come from env files, are unescaped first.
func ParsePublicKey(value string) (crypto.PublicKey, error) {
	value = strings.TrimSpace(strings.ReplaceAll(value, `\n`, "\n"))
	if value == "" {
		return nil, ErrInvalidPublicKey
	}

	var der []byte
	blockType := ""
	if block, _ := pem.Decode([]byte(value)); block != nil {
		der = block.Bytes
		blockType = block.Type
	} else {
		decoded, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(value), ""))
		if err != nil {
			return nil, fmt.Errorf("%w: not pem or base64", ErrInvalidPublicKey)
		}
		der = decoded
	}

	switch blockType {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		return supportedKey(cert.PublicKey)
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(der)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		return key, nil
	}

	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		return supportedKey(key)
	}
	key, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return key, nil
}

// Verifier checks order signatures against one configured public key.
type Verifier struct {
	key crypto.PublicKey
}

// NewVerifier parses publicKey and creates verifier.
func NewVerifier(publicKey string) (*Verifier, error) {
	key, err := ParsePublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	return &Verifier{key: key}, nil
}

// NewVerifierFromKey creates verifier for an already parsed key.
func NewVerifierFromKey(key crypto.PublicKey) *Verifier {
	return &Verifier{key: key}
}

// Verify checks signature against the canonical form of rawOrder.
func (v *Verifier) Verify(rawOrder []byte, signature string) error {
	if v == nil || v.key == nil || !VerifySignature(rawOrder, signature, v.key) {
		return ErrInvalidSignature
	}
	return nil
}

// SkipVerifier accepts every signature. Config loading only allows it in the test
// environment.
type SkipVerifier struct{}

func (SkipVerifier) Verify([]byte, string) error {
	return nil
}

func supportedKey(key any) (crypto.PublicKey, error) {
	switch k := key.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
		return k, nil
	default:
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrInvalidPublicKey, key)
	}
}

func decodeSignature(value string) ([]byte, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, false
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if sig, err := enc.DecodeString(value); err == nil && len(sig) > 0 {
			return sig, true
		}
	}
	return nil, false
}

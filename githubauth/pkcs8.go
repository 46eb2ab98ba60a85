// Package githubauth acquires and rotates the credentials used to read the
// discussion API: it converts GitHub App private keys into an importable
// form, signs short-lived app JWTs, exchanges them for installation tokens,
// and resolves the best available read token across an ordered list of
// sources.
package githubauth

import (
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// pemTypePKCS1 is the PEM block type GitHub uses when it generates app
// private keys. Standard library PKCS#8 import rejects this framing, so
// the body is rewrapped before parsing.
const pemTypePKCS1 = "RSA PRIVATE KEY"

var oidRSAEncryption = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}

// pkcs8 mirrors the PKCS#8 PrivateKeyInfo structure: a version-0 integer,
// the rsaEncryption AlgorithmIdentifier with explicit NULL parameters, and
// the PKCS#1 body as an opaque OCTET STRING.
type pkcs8 struct {
	Version    int
	Algo       pkix.AlgorithmIdentifier
	PrivateKey []byte
}

// ConvertPKCS1ToPKCS8 wraps a PKCS#1 RSA private key DER body in a PKCS#8
// PrivateKeyInfo envelope. asn1.Marshal produces minimal-length DER, which
// is what key import requires.
func ConvertPKCS1ToPKCS8(pkcs1DER []byte) ([]byte, error) {
	if len(pkcs1DER) == 0 {
		return nil, errors.New("empty PKCS#1 key body")
	}

	der, err := asn1.Marshal(pkcs8{
		Version: 0,
		Algo: pkix.AlgorithmIdentifier{
			Algorithm:  oidRSAEncryption,
			Parameters: asn1.NullRawValue,
		},
		PrivateKey: pkcs1DER,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding PKCS#8 envelope: %w", err)
	}
	return der, nil
}

// ParsePrivateKey parses an RSA private key from PEM in either PKCS#1 or
// PKCS#8 form. Escaped newlines (as delivered through single-line env vars)
// are normalized first. The PEM block type decides the format: the PKCS#1
// header triggers conversion, anything else is passed through as PKCS#8.
func ParsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	normalized := strings.ReplaceAll(pemData, `\n`, "\n")

	block, _ := pem.Decode([]byte(normalized))
	if block == nil {
		return nil, errors.New("no PEM block found in private key material")
	}

	der := block.Bytes
	if block.Type == pemTypePKCS1 {
		var err error
		der, err = ConvertPKCS1ToPKCS8(der)
		if err != nil {
			return nil, fmt.Errorf("converting PKCS#1 key: %w", err)
		}
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("importing private key: %w", err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T, want RSA", key)
	}
	return rsaKey, nil
}

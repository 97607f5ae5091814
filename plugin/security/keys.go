package security

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/gantry-sh/gantry/errors"
)

// ParsePublicKeysPEM extracts every PUBLIC KEY block from PEM data.
// Keys must be PKIX-encoded (Ed25519 or RSA).
func ParsePublicKeysPEM(data []byte) ([]crypto.PublicKey, error) {
	var keys []crypto.PublicKey
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "PUBLIC KEY" {
			continue
		}
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "parsing public key")
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, errors.Wrap(errors.ErrConfigInvalid, "no PUBLIC KEY blocks found")
	}
	return keys, nil
}

// LoadTrustedKeys reads PKIX public keys from a list of PEM files.
func LoadTrustedKeys(paths []string) ([]crypto.PublicKey, error) {
	var keys []crypto.PublicKey
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading trusted key file %s", path)
		}
		parsed, err := ParsePublicKeysPEM(data)
		if err != nil {
			return nil, errors.Wrapf(err, "trusted key file %s", path)
		}
		keys = append(keys, parsed...)
	}
	return keys, nil
}

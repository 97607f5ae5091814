package security

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/gantry-sh/gantry/errors"
	"github.com/gantry-sh/gantry/plugin"
)

// VerifyOutcome is the result of a signature check.
type VerifyOutcome string

const (
	// OutcomeVerified means the signature matched a trusted key.
	OutcomeVerified VerifyOutcome = "verified"
	// OutcomeSkipped means verification was not performed (no trusted
	// keys configured and signatures not mandated).
	OutcomeSkipped VerifyOutcome = "skipped"
	// OutcomeUnverified means the signature did not match any trusted
	// key but signatures are not mandated.
	OutcomeUnverified VerifyOutcome = "unverified"
)

// Verifier checks plugin metadata signatures against a set of trusted
// public keys (Ed25519 or RSA-PSS over SHA-256).
type Verifier struct {
	log      *zap.SugaredLogger
	required bool
	keys     []crypto.PublicKey
}

// NewVerifier creates a verifier. With required set, a missing or invalid
// signature is a hard ErrSecurityViolation; otherwise verification
// degrades to a warning.
func NewVerifier(log *zap.SugaredLogger, required bool, keys ...crypto.PublicKey) *Verifier {
	return &Verifier{log: log, required: required, keys: keys}
}

// AddTrustedKey adds a public key to the trusted set.
func (v *Verifier) AddTrustedKey(key crypto.PublicKey) {
	v.keys = append(v.keys, key)
}

// Required reports whether signatures are mandated.
func (v *Verifier) Required() bool {
	return v.required
}

// signedPayload is the canonical form the signature covers: the plugin's
// identity plus its metadata with the permission list stripped (the
// permission grant is a host decision, not part of the signed artifact).
type signedPayload struct {
	Name     string          `json:"name"`
	Version  string          `json:"version"`
	Kind     plugin.Kind     `json:"kind"`
	Metadata plugin.Metadata `json:"metadata"`
}

// CanonicalPayload serializes the byte string a plugin signature covers.
func CanonicalPayload(meta plugin.Metadata) ([]byte, error) {
	stripped := meta
	stripped.RequiredPermissions = nil
	return json.Marshal(signedPayload{
		Name:     meta.Name,
		Version:  meta.Version,
		Kind:     meta.Kind,
		Metadata: stripped,
	})
}

// VerifyPlugin checks signature over the plugin's canonical metadata.
func (v *Verifier) VerifyPlugin(p plugin.Plugin, signature []byte) (VerifyOutcome, error) {
	if len(v.keys) == 0 {
		if v.required {
			return OutcomeUnverified, errors.Wrapf(errors.ErrSecurityViolation,
				"signatures are mandated but no trusted keys are configured")
		}
		v.log.Warnw("signature verification skipped: no trusted keys configured",
			"plugin", p.Name())
		return OutcomeSkipped, nil
	}

	if len(signature) == 0 {
		if v.required {
			return OutcomeUnverified, errors.Wrapf(errors.ErrSecurityViolation,
				"plugin %q carries no signature", p.Name())
		}
		v.log.Warnw("plugin is unsigned", "plugin", p.Name())
		return OutcomeUnverified, nil
	}

	payload, err := CanonicalPayload(p.Metadata())
	if err != nil {
		return OutcomeUnverified, errors.Wrapf(err, "canonicalizing metadata for %q", p.Name())
	}
	digest := sha256.Sum256(payload)

	for _, key := range v.keys {
		switch k := key.(type) {
		case ed25519.PublicKey:
			if ed25519.Verify(k, payload, signature) {
				return OutcomeVerified, nil
			}
		case *rsa.PublicKey:
			if rsa.VerifyPSS(k, crypto.SHA256, digest[:], signature, nil) == nil {
				return OutcomeVerified, nil
			}
		default:
			v.log.Warnw("unsupported trusted key type skipped", "type", fmt.Sprintf("%T", key))
		}
	}

	if v.required {
		return OutcomeUnverified, errors.Wrapf(errors.ErrSecurityViolation,
			"signature of plugin %q does not match any trusted key", p.Name())
	}
	v.log.Warnw("plugin signature did not verify", "plugin", p.Name())
	return OutcomeUnverified, nil
}

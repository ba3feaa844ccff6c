// Package vault wraps symmetric encryption of seat credentials and TOTP
// secrets. Tokens use the Fernet format, so seat rows imported from earlier
// deployments of this system decrypt unchanged.
package vault

import (
	"strings"

	"github.com/fernet/fernet-go"

	dErrors "windseat/pkg/domain-errors"
)

// Vault encrypts and decrypts credential payloads with a single symmetric
// key. It is a leaf dependency: no state beyond the key.
type Vault struct {
	key *fernet.Key
}

// New decodes the base64 key. Keys missing their base64 padding are accepted,
// matching what operators tend to paste into env files.
func New(encodedKey string) (*Vault, error) {
	if encodedKey == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "vault key is required")
	}
	if rem := len(encodedKey) % 4; rem != 0 {
		encodedKey += strings.Repeat("=", 4-rem)
	}
	key, err := fernet.DecodeKey(encodedKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "decode vault key")
	}
	return &Vault{key: key}, nil
}

// Encrypt seals plaintext into a Fernet token.
func (v *Vault) Encrypt(plaintext string) ([]byte, error) {
	token, err := fernet.EncryptAndSign([]byte(plaintext), v.key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encrypt credential")
	}
	return token, nil
}

// Decrypt opens a Fernet token. Tokens are stored without expiry, so no TTL
// is enforced here. Malformed tokens and tokens sealed under a foreign key
// both surface as CodeDecryption.
func (v *Vault) Decrypt(token []byte) (string, error) {
	plaintext := fernet.VerifyAndDecrypt(token, 0, []*fernet.Key{v.key})
	if plaintext == nil {
		return "", dErrors.New(dErrors.CodeDecryption, "credential payload failed verification")
	}
	return string(plaintext), nil
}

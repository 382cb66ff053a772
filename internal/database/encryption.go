package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"szenai/internal/constants"
)

// MinSecretLength is the shortest accepted encryption secret.
const MinSecretLength = 32

// encryptor seals message text at rest. A zero encryptor stores plaintext.
type encryptor struct {
	gcm       cipher.AEAD
	lookupKey []byte
}

func newEncryptor(secret string) (*encryptor, error) {
	if secret == "" {
		return &encryptor{}, nil
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("encryption secret must be at least %d characters long", MinSecretLength)
	}

	key := pbkdf2.Key([]byte(secret), []byte(constants.EncryptionSalt), constants.EncryptionIterations, constants.EncryptionKeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	lookupKey := pbkdf2.Key([]byte(secret), []byte(constants.EncryptionSalt+"-lookup"), constants.EncryptionIterations, constants.EncryptionKeySize, sha256.New)
	return &encryptor{gcm: gcm, lookupKey: lookupKey}, nil
}

func (e *encryptor) enabled() bool {
	return e.gcm != nil
}

func (e *encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" || !e.enabled() {
		return plaintext, nil
	}

	nonce := make([]byte, constants.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(append(nonce, sealed...)), nil
}

func (e *encryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" || !e.enabled() {
		return ciphertext, nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	if len(data) < constants.NonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:constants.NonceSize], data[constants.NonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// LookupHash returns a stable index value for s. With encryption enabled it
// is keyed so that the index does not reveal chat ids.
func (e *encryptor) LookupHash(s string) string {
	if !e.enabled() {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])
	}
	mac := hmac.New(sha256.New, e.lookupKey)
	mac.Write([]byte(s))
	return hex.EncodeToString(mac.Sum(nil))
}

package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	encryptionSaltSize   = 32
	encryptionKeySize    = 32 // AES-256
	encryptionIterations = 100000
)

// Encryptor applies AES-256-GCM to whole artifact files, deriving the key
// from the configured passphrase with PBKDF2-SHA256. The on-disk layout is
// salt || nonce || ciphertext.
type Encryptor struct {
	password string
}

// NewEncryptor creates an encryptor for the given passphrase
func NewEncryptor(password string) *Encryptor {
	return &Encryptor{password: password}
}

// EncryptFile encrypts the artifact at path and returns the path of the
// encrypted artifact (path + ".enc"). The plaintext file is left in place;
// the caller decides when to replace it.
func (e *Encryptor) EncryptFile(path string) (string, error) {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return "", NewEncryptError("failed to read artifact for encryption", err).WithContext("path", path)
	}

	salt := make([]byte, encryptionSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", NewEncryptError("failed to generate salt", err)
	}

	gcm, err := e.newGCM(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", NewEncryptError("failed to generate nonce", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	encryptedPath := path + EncryptedExtension
	out := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)

	if err := os.WriteFile(encryptedPath, out, 0o600); err != nil {
		return "", NewEncryptError("failed to write encrypted artifact", err).WithContext("path", encryptedPath)
	}

	return encryptedPath, nil
}

// DecryptFile decrypts an encrypted artifact into destPath
func (e *Encryptor) DecryptFile(path string, destPath string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewEncryptError("failed to read encrypted artifact", err).WithContext("path", path)
	}

	if len(data) < encryptionSaltSize {
		return NewEncryptError("encrypted artifact too short", nil).WithContext("path", path)
	}

	salt, rest := data[:encryptionSaltSize], data[encryptionSaltSize:]

	gcm, err := e.newGCM(salt)
	if err != nil {
		return err
	}

	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return NewEncryptError("encrypted artifact too short", nil).WithContext("path", path)
	}
	nonce, ciphertext := rest[:nonceSize], rest[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return NewEncryptError("failed to decrypt artifact (wrong passphrase or corrupt data)", err).
			WithContext("path", path)
	}

	if err := os.WriteFile(destPath, plaintext, 0o600); err != nil {
		return NewEncryptError("failed to write decrypted artifact", err).WithContext("path", destPath)
	}

	return nil
}

// newGCM derives the AES key from the passphrase and salt and returns a
// ready GCM instance
func (e *Encryptor) newGCM(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(e.password), salt, encryptionIterations, encryptionKeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, NewEncryptError("failed to create AES cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewEncryptError("failed to create GCM cipher", err)
	}

	return gcm, nil
}

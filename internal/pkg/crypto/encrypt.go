package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const keyInfo = "evomanager/secrets/v1"

// deriveKey expande a chave configurada em 32 bytes para AES-256.
func deriveKey(key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("crypto: chave vazia")
	}
	out := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(key), nil, []byte(keyInfo)), out); err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}
	return out, nil
}

func newGCM(key string) (cipher.AEAD, error) {
	derived, err := deriveKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new GCM: %w", err)
	}
	return gcm, nil
}

func Encrypt(plaintext []byte, key string) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: read nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func Decrypt(ciphertext []byte, key string) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("crypto: ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt: %w", err)
	}

	return plaintext, nil
}

// EncryptString cifra s; string vazia resulta em nil (coluna NULL).
func EncryptString(s, key string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return Encrypt([]byte(s), key)
}

func DecryptString(b []byte, key string) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	plain, err := Decrypt(b, key)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

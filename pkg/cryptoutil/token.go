// Package cryptoutil provides the token encryption, password hashing, and
// cookie signing primitives used by the API service and the store.
package cryptoutil

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

var (
	errInvalidPKCS7Data    = errors.New("cryptoutil: invalid pkcs7 data")
	errInvalidPKCS7Padding = errors.New("cryptoutil: invalid pkcs7 padding")
	errCiphertextTooShort  = errors.New("cryptoutil: ciphertext shorter than one IV")
)

// EncryptToken encrypts a provider secret with AES-256-CBC under a 32-byte
// key. Unlike AES-CBC protocols that fix the IV for wire compatibility with a
// third party, token-at-rest encryption owns both ends of the format, so each
// call generates a fresh random IV and prefixes it to the ciphertext.
func EncryptToken(key []byte, plaintext string) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: new cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("cryptoutil: read iv: %w", err)
	}

	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	return append(iv, ct...), nil
}

// DecryptToken reverses EncryptToken, reading the IV from the first
// aes.BlockSize bytes of the ciphertext.
func DecryptToken(key []byte, ciphertext []byte) (string, error) {
	if len(ciphertext) < aes.BlockSize {
		return "", errCiphertextTooShort
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("cryptoutil: new cipher: %w", err)
	}

	iv, ct := ciphertext[:aes.BlockSize], ciphertext[aes.BlockSize:]
	if len(ct)%aes.BlockSize != 0 {
		return "", errInvalidPKCS7Data
	}

	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - (len(data) % blockSize)
	if padLen == 0 {
		padLen = blockSize
	}
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errInvalidPKCS7Data
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errInvalidPKCS7Padding
	}
	if !bytes.Equal(bytes.Repeat([]byte{byte(padLen)}, padLen), data[len(data)-padLen:]) {
		return nil, errInvalidPKCS7Padding
	}
	return data[:len(data)-padLen], nil
}

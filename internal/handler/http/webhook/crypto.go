package webhook

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// verifySignature checks Lark's custom-app signature scheme:
// SHA256(timestamp || nonce || encryptKey || body) must equal the
// X-Lark-Signature header, hex-encoded.
func verifySignature(timestamp, nonce, encryptKey string, body, signature []byte) bool {
	h := sha256.New()
	h.Write([]byte(timestamp))
	h.Write([]byte(nonce))
	h.Write([]byte(encryptKey))
	h.Write(body)
	want := hex.EncodeToString(h.Sum(nil))
	return want == string(signature)
}

var errCiphertextTooShort = errors.New("webhook: ciphertext shorter than aes block size")

// decryptPayload reverses Lark's event encryption: the base64 ciphertext's
// first 16 bytes are the CBC IV, the AES key is SHA-256(encryptKey), and the
// plaintext is PKCS7-padded.
func decryptPayload(encryptKey, encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64 ciphertext: %w", err)
	}
	if len(raw) < aes.BlockSize {
		return nil, errCiphertextTooShort
	}

	key := sha256.Sum256([]byte(encryptKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("build aes cipher: %w", err)
	}

	iv := raw[:aes.BlockSize]
	ciphertext := raw[aes.BlockSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("webhook: ciphertext is not a multiple of the block size")
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return unpadPKCS7(plaintext)
}

func unpadPKCS7(data []byte) ([]byte, error) {
	n := len(data)
	if n == 0 {
		return nil, errors.New("webhook: empty plaintext")
	}
	padLen := int(data[n-1])
	if padLen == 0 || padLen > n || padLen > aes.BlockSize {
		return nil, errors.New("webhook: invalid pkcs7 padding")
	}
	if !bytes.Equal(data[n-padLen:], bytes.Repeat([]byte{byte(padLen)}, padLen)) {
		return nil, errors.New("webhook: invalid pkcs7 padding bytes")
	}
	return data[:n-padLen], nil
}

package parser

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize  = 16
	nonceSize = 16
	tagSize   = 16
	kdfRounds = 100000
)

// Decrypt 解密 AES-256-GCM 加密的导出文件
// 格式: salt(16) + nonce(16) + tag(16) + ciphertext，密钥由 PBKDF2-SHA256 派生
func Decrypt(data []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("decryption key is required")
	}
	header := saltSize + nonceSize + tagSize
	if len(data) < header {
		return nil, fmt.Errorf("encrypted file too small")
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	tag := data[saltSize+nonceSize : header]
	ciphertext := data[header:]

	key := pbkdf2.Key([]byte(password), salt, kdfRounds, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	// GCM 需要 ciphertext+tag 拼在一起
	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

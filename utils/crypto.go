package utils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2Iterations количество итераций при выводе ключа из пароля
const pbkdf2Iterations = 65536

// TextCipher обратимо шифрует строки.
// Для любого корректного p выполняется Decrypt(Encrypt(p)) == p.
type TextCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// AESCipher шифрует данные AES-256-GCM ключом, выведенным из пароля и соли
type AESCipher struct {
	aead cipher.AEAD
}

// NewAESCipher создает шифратор. Соль передается в hex-кодировке.
func NewAESCipher(password, salt string) (*AESCipher, error) {
	if password == "" {
		return nil, errors.New("пароль шифрования не задан")
	}

	saltBytes, err := hex.DecodeString(salt)
	if err != nil {
		return nil, fmt.Errorf("соль шифрования должна быть в hex-кодировке: %w", err)
	}
	if len(saltBytes) < 8 {
		return nil, errors.New("соль шифрования должна быть не короче 8 байт")
	}

	key := pbkdf2.Key([]byte(password), saltBytes, pbkdf2Iterations, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESCipher{aead: aead}, nil
}

// Encrypt шифрует строку, результат содержит nonce и шифротекст в hex
func (c *AESCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt расшифровывает строку, полученную из Encrypt
func (c *AESCipher) Decrypt(ciphertext string) (string, error) {
	data, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode hex: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize+c.aead.Overhead() {
		return "", fmt.Errorf("encrypted data too short: %d bytes", len(data))
	}

	plaintext, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt data: %w", err)
	}

	return string(plaintext), nil
}

// PGPCipher шифрует данные открытым ключом OpenPGP и расшифровывает закрытым
type PGPCipher struct {
	public  openpgp.EntityList
	private openpgp.EntityList
}

// NewPGPCipher загружает ключи в armored-формате.
// Если закрытый ключ защищен паролем, он расшифровывается при загрузке.
func NewPGPCipher(publicKey, privateKey, passphrase string) (*PGPCipher, error) {
	public, err := openpgp.ReadArmoredKeyRing(strings.NewReader(publicKey))
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}

	private, err := openpgp.ReadArmoredKeyRing(strings.NewReader(privateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	for _, entity := range private {
		if entity.PrivateKey != nil && entity.PrivateKey.Encrypted {
			if err := entity.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
				return nil, fmt.Errorf("failed to unlock private key: %w", err)
			}
		}
		for _, subkey := range entity.Subkeys {
			if subkey.PrivateKey != nil && subkey.PrivateKey.Encrypted {
				if err := subkey.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
					return nil, fmt.Errorf("failed to unlock private subkey: %w", err)
				}
			}
		}
	}

	return &PGPCipher{public: public, private: private}, nil
}

// Encrypt шифрует данные и возвращает armored-сообщение
func (c *PGPCipher) Encrypt(plaintext string) (string, error) {
	var buf bytes.Buffer
	armoredWriter, err := armor.Encode(&buf, "PGP MESSAGE", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create armored writer: %w", err)
	}

	w, err := openpgp.Encrypt(armoredWriter, c.public, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create encrypt writer: %w", err)
	}

	if _, err := w.Write([]byte(plaintext)); err != nil {
		return "", fmt.Errorf("failed to write data: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close plaintext writer: %w", err)
	}
	if err := armoredWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to close armored writer: %w", err)
	}

	return buf.String(), nil
}

// Decrypt расшифровывает armored-сообщение
func (c *PGPCipher) Decrypt(ciphertext string) (string, error) {
	block, err := armor.Decode(strings.NewReader(ciphertext))
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted data: %w", err)
	}

	md, err := openpgp.ReadMessage(block.Body, c.private, nil, nil)
	if err != nil {
		return "", fmt.Errorf("failed to read message: %w", err)
	}

	decrypted, err := io.ReadAll(md.UnverifiedBody)
	if err != nil {
		return "", fmt.Errorf("failed to read decrypted data: %w", err)
	}

	return string(decrypted), nil
}

// CardFingerprint вычисляет HMAC номера карты.
// Используется для поиска дубликатов без расшифровки номеров.
func CardFingerprint(number string, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(number))
	return hex.EncodeToString(h.Sum(nil))
}

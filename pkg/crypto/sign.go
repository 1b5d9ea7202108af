package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
)

// sign.go - подпись запросов к API биржи
//
// Биржа аутентифицирует запросы подписью RSA-PSS (SHA-256):
// подписывается строка timestamp + METHOD + path (+ body для POST),
// подпись кодируется в base64 и передаётся в заголовке запроса.

// Ошибки подписи
var (
	ErrEmptyPEM      = errors.New("private key PEM is empty")
	ErrInvalidPEM    = errors.New("failed to decode PEM block")
	ErrNotRSAKey     = errors.New("private key is not an RSA key")
)

// RequestSigner подписывает сообщения приватным RSA-ключом.
// Потокобезопасен после создания: ключ только читается.
type RequestSigner struct {
	key *rsa.PrivateKey
}

// NewRequestSigner парсит приватный ключ из PEM и создает signer.
//
// Поддерживаются оба формата ключей: PKCS#8 ("PRIVATE KEY")
// и PKCS#1 ("RSA PRIVATE KEY").
func NewRequestSigner(pemData string) (*RequestSigner, error) {
	if pemData == "" {
		return nil, ErrEmptyPEM
	}

	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, ErrInvalidPEM
	}

	// Сначала PKCS#8, затем fallback на PKCS#1
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		rsaKey, err1 := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err1 != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return &RequestSigner{key: rsaKey}, nil
	}

	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrNotRSAKey
	}

	return &RequestSigner{key: rsaKey}, nil
}

// Sign подписывает сообщение RSA-PSS с SHA-256.
//
// Длина соли равна длине хеша (требование API биржи).
// Возвращает подпись в base64 (стандартный алфавит).
func (s *RequestSigner) Sign(message string) (string, error) {
	hash := sha256.Sum256([]byte(message))

	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

// PublicKey возвращает публичную часть ключа (для проверки в тестах).
func (s *RequestSigner) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

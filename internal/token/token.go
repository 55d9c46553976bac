// Package token выпускает и проверяет подписанные токены-полномочия,
// которые печатаются в QR-коде заведения и дают право добавить один штамп.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmeshcher/stampcard/internal/model"
)

// DefaultTTL задаёт срок действия токена. QR-наклейки печатаются надолго.
const DefaultTTL = 10 * 365 * 24 * time.Hour

// Signer выпускает и проверяет токены вида base64url(payload).base64url(mac),
// где payload = "<slug>:<expiry_epoch_millis>", mac = HMAC-SHA256(secret, payload).
type Signer struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// Option настраивает Signer.
type Option func(*Signer)

// WithTTL задаёт срок действия выпускаемых токенов.
func WithTTL(ttl time.Duration) Option {
	return func(s *Signer) {
		s.ttl = ttl
	}
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner создаёт Signer с указанным секретом. При пустом секрете генерируется
// случайный ключ процесса: выпущенные токены перестанут проходить проверку после рестарта.
func NewSigner(secret string, opts ...Option) *Signer {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	s := &Signer{
		secretKey: key,
		ttl:       DefaultTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue выпускает токен для заведения с указанным slug.
func (s *Signer) Issue(tenantSlug string) string {
	exp := s.now().Add(s.ttl).UnixMilli()
	payload := tenantSlug + ":" + strconv.FormatInt(exp, 10)

	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." +
		base64.RawURLEncoding.EncodeToString(s.sign([]byte(payload)))
}

// Verify проверяет подпись и срок действия токена и возвращает slug заведения.
func (s *Signer) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: malformed", model.ErrInvalidToken)
	}

	payload, err := decodeSegment(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: payload encoding", model.ErrInvalidToken)
	}
	signature, err := decodeSegment(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: signature encoding", model.ErrInvalidToken)
	}

	if !hmac.Equal(signature, s.sign(payload)) {
		return "", fmt.Errorf("%w: signature mismatch", model.ErrInvalidToken)
	}

	sep := strings.LastIndexByte(string(payload), ':')
	if sep <= 0 {
		return "", fmt.Errorf("%w: malformed payload", model.ErrInvalidToken)
	}
	slug := string(payload[:sep])

	exp, err := strconv.ParseInt(string(payload[sep+1:]), 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: expiry", model.ErrInvalidToken)
	}
	if exp < s.now().UnixMilli() {
		return "", fmt.Errorf("%w: expired", model.ErrInvalidToken)
	}

	return slug, nil
}

func (s *Signer) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write(payload)
	return mac.Sum(nil)
}

// decodeSegment принимает base64url как без паддинга, так и с ним.
// Strict отвергает ненулевые хвостовые биты, иначе два разных текста давали бы одну подпись.
func decodeSegment(seg string) ([]byte, error) {
	return base64.RawURLEncoding.Strict().DecodeString(strings.TrimRight(seg, "="))
}

package cookie

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	bfferrors "github.com/jrsteele09/go-oidc-bff/internal/errors"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
)

const (
	ModePrivate = "private"
	ModeSigned  = "signed"

	sessionIDClaim = "sid"
)

// Codec seals a session id into a cookie value and opens it again
type Codec interface {
	Encode(sessionID string) (string, error)
	Decode(value string) (string, error)
}

// NewCodec builds the codec for the configured content security mode
func NewCodec(mode, hexKey string) (Codec, error) {
	keys, err := DeriveKeys(hexKey)
	if err != nil {
		return nil, err
	}
	switch mode {
	case ModePrivate, "":
		return NewPrivateCodec(keys.Encryption), nil
	case ModeSigned:
		return NewSignedCodec(keys.Signing), nil
	default:
		return nil, bfferrors.Wrapf(bfferrors.ErrUnsupported, "cookie content security %q", mode)
	}
}

// SignedCodec stores the session id in the clear inside an HS256 JWT
type SignedCodec struct {
	key []byte
	now func() time.Time
}

func NewSignedCodec(key []byte) *SignedCodec {
	return &SignedCodec{key: key, now: time.Now}
}

func (c *SignedCodec) Encode(sessionID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		sessionIDClaim: sessionID,
		"iat":          c.now().Unix(),
	})
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign cookie: %w", err)
	}
	return signed, nil
}

func (c *SignedCodec) Decode(value string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(value, claims, c.verificationKey, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", bfferrors.Wrapf(bfferrors.ErrInvalidCookie, "%v", err)
	}
	sid, ok := claims[sessionIDClaim].(string)
	if !ok || sid == "" {
		return "", bfferrors.Wrapf(bfferrors.ErrInvalidCookie, "missing %s claim", sessionIDClaim)
	}
	return sid, nil
}

func (c *SignedCodec) verificationKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return c.key, nil
}

// PrivateCodec encrypts the session id as a compact JWE (dir, A256GCM)
type PrivateCodec struct {
	key []byte
}

func NewPrivateCodec(key []byte) *PrivateCodec {
	return &PrivateCodec{key: key}
}

func (c *PrivateCodec) Encode(sessionID string) (string, error) {
	sealed, err := jwe.Encrypt([]byte(sessionID), jwe.WithKey(jwa.DIRECT, c.key), jwe.WithContentEncryption(jwa.A256GCM))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt cookie: %w", err)
	}
	return string(sealed), nil
}

func (c *PrivateCodec) Decode(value string) (string, error) {
	plain, err := jwe.Decrypt([]byte(value), jwe.WithKey(jwa.DIRECT, c.key))
	if err != nil {
		return "", bfferrors.Wrapf(bfferrors.ErrInvalidCookie, "%v", err)
	}
	if len(plain) == 0 {
		return "", bfferrors.Wrapf(bfferrors.ErrInvalidCookie, "empty payload")
	}
	return string(plain), nil
}

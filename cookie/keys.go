package cookie

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	bfferrors "github.com/jrsteele09/go-oidc-bff/internal/errors"
	"golang.org/x/crypto/hkdf"
)

const (
	MasterKeyLength  = 64
	derivedKeyLength = 32

	signingKeyInfo    = "oidc-bff cookie signing"
	encryptionKeyInfo = "oidc-bff cookie encryption"
)

// Keys holds the per-purpose keys derived from the configured master key
type Keys struct {
	Signing    []byte
	Encryption []byte
}

// DeriveKeys decodes a 64 byte hex master key and expands it with HKDF-SHA256
// into independent signing and encryption keys.
func DeriveKeys(hexKey string) (Keys, error) {
	master, err := hex.DecodeString(hexKey)
	if err != nil {
		return Keys{}, bfferrors.Wrapf(bfferrors.ErrInvalidCookieKey, "key is not hex")
	}
	if len(master) != MasterKeyLength {
		return Keys{}, bfferrors.Wrapf(bfferrors.ErrInvalidCookieKey, "key must be %d bytes, got %d", MasterKeyLength, len(master))
	}

	signing, err := expand(master, signingKeyInfo)
	if err != nil {
		return Keys{}, err
	}
	encryption, err := expand(master, encryptionKeyInfo)
	if err != nil {
		return Keys{}, err
	}
	return Keys{Signing: signing, Encryption: encryption}, nil
}

func expand(master []byte, info string) ([]byte, error) {
	key := make([]byte, derivedKeyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive %q key: %w", info, err)
	}
	return key, nil
}

// Package pin gates the app behind a 4-digit access code.
package pin

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/pbkdf2"

	"treinos/api/internal/local"
)

const (
	saltLen    = 16
	hashIter   = 10000
	hashKeyLen = 32
)

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// ErrBadFormat rejects codes that are not exactly four digits.
var ErrBadFormat = errors.New("pin must be four digits")

// Gate stores and verifies the access code through the local store.
type Gate struct {
	store local.Store
}

func NewGate(store local.Store) *Gate {
	return &Gate{store: store}
}

// Init sets the default code on first run. An existing hash is left alone.
func (g *Gate) Init(ctx context.Context, defaultPIN string) error {
	_, ok, err := g.store.Get(ctx, local.KeyPinHash)
	if err != nil {
		return fmt.Errorf("read pin hash: %w", err)
	}
	if ok {
		return nil
	}
	return g.SetPin(ctx, defaultPIN)
}

// SetPin replaces the stored code with a fresh salt and hash.
func (g *Gate) SetPin(ctx context.Context, code string) error {
	if !pinPattern.MatchString(code) {
		return ErrBadFormat
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate pin salt: %w", err)
	}
	hash := pbkdf2.Key([]byte(code), salt, hashIter, hashKeyLen, sha256.New)
	if err := g.store.Set(ctx, local.KeyPinSalt, hex.EncodeToString(salt)); err != nil {
		return fmt.Errorf("store pin salt: %w", err)
	}
	if err := g.store.Set(ctx, local.KeyPinHash, hex.EncodeToString(hash)); err != nil {
		return fmt.Errorf("store pin hash: %w", err)
	}
	return nil
}

// Verify checks the code and records the unlocked state on success.
func (g *Gate) Verify(ctx context.Context, code string) (bool, error) {
	if !pinPattern.MatchString(code) {
		return false, nil
	}
	saltHex, ok, err := g.store.Get(ctx, local.KeyPinSalt)
	if err != nil {
		return false, fmt.Errorf("read pin salt: %w", err)
	}
	if !ok {
		return false, errors.New("pin not initialized")
	}
	hashHex, ok, err := g.store.Get(ctx, local.KeyPinHash)
	if err != nil {
		return false, fmt.Errorf("read pin hash: %w", err)
	}
	if !ok {
		return false, errors.New("pin not initialized")
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false, fmt.Errorf("decode pin salt: %w", err)
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil {
		return false, fmt.Errorf("decode pin hash: %w", err)
	}
	got := pbkdf2.Key([]byte(code), salt, hashIter, hashKeyLen, sha256.New)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return false, nil
	}
	if err := g.store.Set(ctx, local.KeyPinUnlocked, "1"); err != nil {
		return false, fmt.Errorf("store unlock flag: %w", err)
	}
	return true, nil
}

// Unlocked reports whether a successful unlock was recorded.
func (g *Gate) Unlocked(ctx context.Context) (bool, error) {
	v, ok, err := g.store.Get(ctx, local.KeyPinUnlocked)
	if err != nil {
		return false, fmt.Errorf("read unlock flag: %w", err)
	}
	return ok && v == "1", nil
}

// Lock clears the unlocked state.
func (g *Gate) Lock(ctx context.Context) error {
	if err := g.store.Remove(ctx, local.KeyPinUnlocked); err != nil {
		return fmt.Errorf("clear unlock flag: %w", err)
	}
	return nil
}

package encrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/tarndt/flashbench/pkg/util"
)

//Mode represents a report encryption mode
type Mode uint8

//Enumerate available modes and their textual names
const (
	ModeIdentity Mode = iota
	ModeUnknown
	ModeAESCTR
	ModeAESOFB

	ModeIdentityName = "identity"
	ModeAESCTRName   = "aes-ctr"
	ModeAESOFBName   = "aes-ofb"
	ModeUknownName   = "unknown"
)

//ModeFromName constructs a Mode from a textual name
func ModeFromName(name string) Mode {
	switch name {
	case "", "none", ModeIdentityName:
		return ModeIdentity
	case ModeAESCTRName, "aes":
		return ModeAESCTR
	case ModeAESOFBName:
		return ModeAESOFB
	}
	return ModeUnknown
}

//ParseMode is ModeFromName but fails on unknown names
func ParseMode(name string) (Mode, error) {
	if mode := ModeFromName(name); mode != ModeUnknown {
		return mode, nil
	}
	return ModeUnknown, fmt.Errorf("Could not parse encryption mode %q, expected one of %q, %q or %q", name, ModeIdentityName, ModeAESCTRName, ModeAESOFBName)
}

//AlgoName returns the textual name of a Mode
func (m Mode) AlgoName() string {
	switch m {
	case ModeIdentity:
		return ModeIdentityName
	case ModeAESCTR:
		return ModeAESCTRName
	case ModeAESOFB:
		return ModeAESOFBName
	}
	return ModeUknownName
}

//String is a synonym for AlgoName
func (m Mode) String() string {
	return m.AlgoName()
}

func (m Mode) stream(key, initVect []byte) (cipher.Stream, error) {
	var cipherConstructor func(cipher.Block, []byte) cipher.Stream
	switch m {
	case ModeAESCTR:
		cipherConstructor = cipher.NewCTR
	case ModeAESOFB:
		cipherConstructor = cipher.NewOFB
	default:
		return nil, fmt.Errorf("Cannot create cipher for %s mode", m)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("Could not create AES cipher: %w", err)
	}
	if len(initVect) != aes.BlockSize {
		return nil, fmt.Errorf("Provided AES initialization vector has: %d bytes, rather than the required: %d bytes", len(initVect), aes.BlockSize)
	}
	return cipherConstructor(block, initVect), nil
}

//NewReader constructs a reader wrapper that applies this mode's decryption
func (m Mode) NewReader(rdr io.Reader, key, initVect []byte) (io.Reader, error) {
	if m == ModeIdentity {
		return rdr, nil
	}
	strm, err := m.stream(key, initVect)
	if err != nil {
		return nil, err
	}
	return cipher.StreamReader{S: strm, R: rdr}, nil
}

//NewWriter constructs a writer wrapper that applies this mode's encryption
// with a fresh random IV. Closing the result never closes wtr.
func (m Mode) NewWriter(wtr io.Writer, key []byte) (encryptor io.WriteCloser, initVect []byte, err error) {
	if m == ModeIdentity {
		return noopWtrCloser{wtr}, nil, nil
	}

	initVect = make([]byte, aes.BlockSize)
	if _, err = rand.Read(initVect); err != nil {
		return nil, nil, fmt.Errorf("Could not read entropy source to populate AES initialization vector: %w", err)
	}
	strm, err := m.stream(key, initVect)
	if err != nil {
		return nil, nil, err
	}
	return cipher.StreamWriter{S: strm, W: noopWtrCloser{wtr}}, initVect, nil
}

type noopWtrCloser struct {
	io.Writer
}

func (noopWtrCloser) Close() error { return nil }

//MakeRandomAESKey generates AES-256 (32 byte) key securely by using a cryptographic entropy source
func MakeRandomAESKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("Could not read entropy source to populate key: %w", err)
	}
	return key, nil
}

//ParseKey decodes a hex encoded AES key and validates it
func ParseKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("Could not decode AES key as hex: %w", err)
	}
	if err = ValidAESKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

//ValidAESKey confirms the provided key is the correct length for AES/128/192/256
// and is not all zeros
func ValidAESKey(key []byte) error {
	switch len(key) {
	case 16, 24, 32:
	case 0:
		return fmt.Errorf("AES key is empty")
	default:
		return fmt.Errorf("AES key is of an unexpected length: %d bytes (Use 16 bytes for AES-128, 24 bytes for AES-192, or 32 bytes AES-256 [recommended])", len(key))
	}

	if util.IsZeros(key) {
		return fmt.Errorf("Provided AES key is all zeros (likely mistake)")
	}
	return nil
}

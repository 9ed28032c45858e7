package algoutil

import (
	"crypto/rand"
	"encoding/base64"
	"math"
	"regexp"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"otakuverse/internal/errs"
)

// MicroAlgosPerAlgo is the base-unit scale of the network: amounts travel in
// integer microAlgos on the wire and in whole Algos in user-facing fields.
const MicroAlgosPerAlgo = 1_000_000

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)

// IsValidAddress reports whether addr is a well-formed Algorand address
// (base32 with a valid checksum).
func IsValidAddress(addr string) bool {
	_, err := types.DecodeAddress(addr)
	return err == nil
}

// FormatAddress elides the middle of an address for display, keeping the
// first startChars and last endChars characters. Addresses short enough to
// show in full are returned unchanged.
func FormatAddress(addr string, startChars, endChars int) string {
	if addr == "" {
		return ""
	}
	if startChars < 0 {
		startChars = 0
	}
	if endChars < 0 {
		endChars = 0
	}
	if len(addr) <= startChars+endChars {
		return addr
	}
	return addr[:startChars] + "..." + addr[len(addr)-endChars:]
}

// ToMicroAlgos converts a display-unit amount to integer base units.
func ToMicroAlgos(algos float64) uint64 {
	return uint64(math.Round(algos * MicroAlgosPerAlgo))
}

// ToAlgos converts integer base units back to the display unit.
func ToAlgos(microAlgos uint64) float64 {
	return float64(microAlgos) / MicroAlgosPerAlgo
}

// DecodeUnsignedTransaction decodes a base64-encoded unsigned transaction,
// as returned by the minting backend when a claim needs an on-chain step.
func DecodeUnsignedTransaction(encoded string) (types.Transaction, error) {
	var txn types.Transaction

	cleaned := strings.TrimSpace(encoded)
	if cleaned == "" {
		return txn, errs.New(errs.KindInvalidInput, "empty transaction payload")
	}
	if !base64Pattern.MatchString(cleaned) {
		return txn, errs.New(errs.KindInvalidInput, "transaction payload is not valid base64")
	}

	raw, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return txn, errs.Wrap(errs.KindInvalidInput, "transaction payload is not valid base64", err)
	}
	if err := msgpack.Decode(raw, &txn); err != nil {
		return txn, errs.Wrap(errs.KindInvalidInput, "transaction payload is not a valid transaction", err)
	}
	return txn, nil
}

// EncodeTransaction renders an unsigned transaction as msgpack bytes, the
// form the wallet provider expects to receive for signing.
func EncodeTransaction(txn types.Transaction) []byte {
	return msgpack.Encode(&txn)
}

const noteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateNote produces a random alphanumeric transaction note of length n.
func GenerateNote(n int) string {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; keep the note empty
		// rather than panicking inside a transaction build.
		return ""
	}
	for i, b := range buf {
		buf[i] = noteAlphabet[int(b)%len(noteAlphabet)]
	}
	return string(buf)
}

// Package eic parses and validates Energy Identification Codes.
//
// An EIC is 16 characters from [0-9A-Z-]: a two-character issuing office,
// an object type letter, twelve identifier characters and a check
// character computed over the first fifteen.
package eic

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Object types carried in the third character.
const (
	TypeParty       = 'X'
	TypeArea        = 'Y'
	TypeMeasuringPt = 'Z'
	TypeResource    = 'W'
	TypeLocation    = 'V'
	TypeTieLine     = 'T'
	TypeSubstation  = 'A'
)

// Length is the number of characters in a code.
const Length = 16

const checkedCharacters = Length - 1

var codeRegex = regexp.MustCompile(`^[0-9A-Z-]{16}$`)

var (
	ErrInvalidFormat = errors.New("eic: invalid code format")
	ErrInvalidCheck  = errors.New("eic: check character mismatch")
)

// Code is a parsed Energy Identification Code.
type Code struct {
	Value      string `json:"value"`
	Issuer     string `json:"issuer"`
	ObjectType byte   `json:"object_type"`
	Check      byte   `json:"check"`
}

// Parse validates s and splits it into its parts. Surrounding whitespace is
// ignored and lowercase letters are accepted.
func Parse(s string) (*Code, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !codeRegex.MatchString(s) {
		return nil, fmt.Errorf("%w: %q (expected 16 characters of 0-9, A-Z or '-')", ErrInvalidFormat, s)
	}

	want := CheckCharacter(s[:checkedCharacters])
	if s[checkedCharacters] != want {
		return nil, fmt.Errorf("%w: %s (expected %c)", ErrInvalidCheck, s, want)
	}

	return &Code{
		Value:      s,
		Issuer:     s[:2],
		ObjectType: s[2],
		Check:      s[checkedCharacters],
	}, nil
}

// Validate reports whether s is a well-formed EIC.
func Validate(s string) error {
	_, err := Parse(s)
	return err
}

// CheckCharacter computes the check character for the first fifteen
// characters of a code. Weights run from 16 down to 2.
func CheckCharacter(body string) byte {
	sum := 0
	for i := 0; i < len(body) && i < checkedCharacters; i++ {
		sum += value(body[i]) * (Length - i)
	}
	check := 36 - ((sum-1)%37+37)%37
	if check == 36 {
		return '-'
	}
	return character(check)
}

func value(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return 36
	}
}

func character(v int) byte {
	if v < 10 {
		return byte('0' + v)
	}
	return byte('A' + v - 10)
}

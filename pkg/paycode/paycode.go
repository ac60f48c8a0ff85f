// Package paycode computes and checks the CRC-16/CCITT-FALSE checksum that
// terminates an EMV-style payment code (PIX "copia e cola" payloads).
//
// Every function normalizes its input by removing all whitespace first, so a
// code pasted with line breaks or spaces yields the same result as the
// compact form.
package paycode

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	// ChecksumLength is the number of hex characters of the trailing checksum.
	ChecksumLength = 4
	// PayloadPrefix is the payload format indicator every code starts with.
	PayloadPrefix = "000201"
	// MinLength is the minimum total length of a well-formed code.
	MinLength = 100

	polynomial = 0x1021
	initial    = 0xFFFF
)

var ErrTooShort = errors.New("paycode: code is shorter than the checksum")

// Normalize removes every whitespace character from code.
func Normalize(code string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, code)
}

// Calculate returns the CRC-16/CCITT-FALSE of payload: polynomial 0x1021,
// initial register 0xFFFF, MSB first, no final XOR.
func Calculate(payload string) uint16 {
	payload = Normalize(payload)

	crc := uint16(initial)
	for i := 0; i < len(payload); i++ {
		crc ^= uint16(payload[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ polynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Format renders crc as four upper-case, zero-padded hex digits.
func Format(crc uint16) string {
	return fmt.Sprintf("%04X", crc)
}

// StripChecksum returns code without its last four characters.
func StripChecksum(code string) (string, error) {
	code = Normalize(code)
	if len(code) < ChecksumLength {
		return "", ErrTooShort
	}
	return code[:len(code)-ChecksumLength], nil
}

// ExtractChecksum returns the last four characters of code.
func ExtractChecksum(code string) (string, error) {
	code = Normalize(code)
	if len(code) < ChecksumLength {
		return "", ErrTooShort
	}
	return code[len(code)-ChecksumLength:], nil
}

// AddOrReplaceChecksum recomputes the checksum over the code with its tail
// stripped and appends it. Applying it to its own output is a no-op.
func AddOrReplaceChecksum(code string) (string, error) {
	payload, err := StripChecksum(code)
	if err != nil {
		return "", err
	}
	return payload + Format(Calculate(payload)), nil
}

// Validate reports whether the trailing checksum matches the payload.
// Hex digits compare case-insensitively.
func Validate(code string) bool {
	payload, err := StripChecksum(code)
	if err != nil {
		return false
	}
	current, _ := ExtractChecksum(code)
	return strings.EqualFold(current, Format(Calculate(payload)))
}

// ValidateStructure returns the structural problems of code; an empty slice
// means the structure is acceptable.
func ValidateStructure(code string) []string {
	code = Normalize(code)

	var problems []string
	if !strings.HasPrefix(code, PayloadPrefix) {
		problems = append(problems, fmt.Sprintf("code must start with %s", PayloadPrefix))
	}
	if len(code) < MinLength {
		problems = append(problems, fmt.Sprintf("code must have at least %d characters, got %d", MinLength, len(code)))
	}
	return problems
}

// Report is the outcome of FullValidate.
type Report struct {
	Valid         bool     `json:"valid"`
	FormatValid   bool     `json:"format_valid"`
	CRCValid      bool     `json:"crc_valid"`
	CurrentCRC    string   `json:"current_crc"`
	CalculatedCRC string   `json:"calculated_crc"`
	Errors        []string `json:"errors"`
}

// FullValidate combines the structural and checksum checks.
func FullValidate(code string) Report {
	code = Normalize(code)

	report := Report{Errors: ValidateStructure(code)}
	report.FormatValid = len(report.Errors) == 0

	payload, err := StripChecksum(code)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}

	report.CurrentCRC, _ = ExtractChecksum(code)
	report.CalculatedCRC = Format(Calculate(payload))
	report.CRCValid = strings.EqualFold(report.CurrentCRC, report.CalculatedCRC)
	if !report.CRCValid {
		report.Errors = append(report.Errors,
			fmt.Sprintf("checksum mismatch: code carries %s, payload computes %s", report.CurrentCRC, report.CalculatedCRC))
	}

	report.Valid = report.FormatValid && report.CRCValid
	return report
}

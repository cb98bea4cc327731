package services

import (
	"fmt"
	"strings"

	"github.com/ttacon/libphonenumber"
)

// DefaultPhoneRegion is assumed for numbers written without a country code.
const DefaultPhoneRegion = "IN"

// NormalizePhone returns raw in E.164 form. Blank input stays blank.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := libphonenumber.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("%w: phone %q: %v", ErrInvalidInput, raw, err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", fmt.Errorf("%w: phone %q is not a valid number", ErrInvalidInput, raw)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

package inventory

import (
	"fmt"
	"regexp"
	"strings"
)

var barcodePattern = regexp.MustCompile(`^EM-[A-Z]{2}-\d{6}-\d$`)

// GenerateBarcode builds an item barcode EM-<CAT>-<SEQ>-<check> from a
// two-letter category code and a sequence number. The check digit is a Luhn
// digit over the numeric part.
func GenerateBarcode(categoryCode string, sequence int) string {
	base := fmt.Sprintf("EM-%s-%06d", strings.ToUpper(categoryCode), sequence)
	return fmt.Sprintf("%s-%d", base, luhnCheckDigit(digitsOf(base)))
}

// ValidateBarcode checks format and Luhn digit.
func ValidateBarcode(barcode string) bool {
	if !barcodePattern.MatchString(barcode) {
		return false
	}
	digits := digitsOf(barcode[:len(barcode)-2])
	return luhnCheckDigit(digits) == int(barcode[len(barcode)-1]-'0')
}

// CategoryCode derives the two-letter barcode prefix from a category name.
func CategoryCode(categoryName string) string {
	name := strings.ToUpper(strings.TrimSpace(categoryName))
	if len(name) < 2 {
		return "XX"
	}
	return name[:2]
}

func digitsOf(s string) []int {
	var digits []int
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	return digits
}

func luhnCheckDigit(digits []int) int {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

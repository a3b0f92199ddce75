package license

import (
	"regexp"
	"strings"
)

const (
	// ReferencePrefix is the literal prefix every customer reference carries.
	ReferencePrefix = "XSP"
	// ReferenceDigits is the number of decimal digits following the prefix.
	ReferenceDigits = 7
)

const (
	// MessageCompanyRequired is shown when the company name is blank.
	MessageCompanyRequired = "company name required"
	// MessageReferenceFormat is shown when the reference does not match XSP + 7 digits.
	MessageReferenceFormat = "reference must start with 'XSP' followed by 7 digits (e.g. XSP1234567)"
)

// Go's \d only matches ASCII digits, so full-width digits are rejected.
var referencePattern = regexp.MustCompile(`^XSP\d{7}$`)

// ValidateReference reports whether ref is "XSP" followed by exactly seven digits.
func ValidateReference(ref string) bool {
	return referencePattern.MatchString(ref)
}

// ValidateCompany reports whether the company name has non-whitespace content.
func ValidateCompany(company string) bool {
	return strings.TrimSpace(company) != ""
}

// ValidateSubmission checks both submission fields in form order and returns
// the user-facing message for the first failure, or "" when both pass.
func ValidateSubmission(company, ref string) string {
	if !ValidateCompany(company) {
		return MessageCompanyRequired
	}
	if !ValidateReference(ref) {
		return MessageReferenceFormat
	}
	return ""
}

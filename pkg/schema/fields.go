package schema

import (
	"regexp"
	"strings"
)

// Shared field limits, defined once and referenced by every action payload
// that carries the field.
const (
	MaxVariableNameLength  = 255
	MaxVariableValueLength = 5000
	MaxCacheKeyLength      = 2000
)

// NamePredicate checks a single name field for character-set legality.
// Predicates are injectable; the functions below are the stock rules.
type NamePredicate func(name, fieldName string) error

var (
	lowercaseDashes      = regexp.MustCompile(`^[a-z0-9-]+$`)
	lowercaseUnderscores = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// bannedNameCharacters may not appear in display names; they break URL
// routing and filter grammars downstream.
var bannedNameCharacters = []string{"/", "%", "&", ">", "<"}

// RaiseOnNameWithBannedCharacters rejects names containing routing-hostile characters.
func RaiseOnNameWithBannedCharacters(name, fieldName string) error {
	for _, c := range bannedNameCharacters {
		if strings.Contains(name, c) {
			return NewErrorf(ErrCodeValidation,
				"%s contains an invalid character %q; name cannot contain any of: %s",
				fieldName, c, strings.Join(bannedNameCharacters, " "))
		}
	}
	return nil
}

// RaiseOnNameAlphanumericDashesOnly rejects names that are not lowercase
// alphanumeric with dashes (slugs, block document names, artifact keys).
func RaiseOnNameAlphanumericDashesOnly(name, fieldName string) error {
	if !lowercaseDashes.MatchString(name) {
		return NewErrorf(ErrCodeValidation,
			"%s must only contain lowercase letters, numbers, and dashes", fieldName)
	}
	return nil
}

// RaiseOnNameAlphanumericUnderscoresOnly rejects names that are not lowercase
// alphanumeric with underscores (variable names).
func RaiseOnNameAlphanumericUnderscoresOnly(name, fieldName string) error {
	if !lowercaseUnderscores.MatchString(name) {
		return NewErrorf(ErrCodeValidation,
			"%s must only contain lowercase letters, numbers, and underscores", fieldName)
	}
	return nil
}

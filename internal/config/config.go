package config

import (
	"fmt"
	"strings"
	"time"
)

// Method selects the candidate generation pattern.
type Method string

const (
	MethodRandom                  Method = "random"
	MethodPronounceable           Method = "pronounceable"
	MethodLettersOnly             Method = "letters_only"
	MethodLettersUnderline        Method = "letters_underline"
	MethodNumbersUnderline        Method = "numbers_underline"
	MethodLettersNumbersUnderline Method = "letters_numbers_underline"
	MethodNumbersLetters          Method = "numbers_letters"
)

var methods = []Method{
	MethodRandom,
	MethodPronounceable,
	MethodLettersOnly,
	MethodLettersUnderline,
	MethodNumbersUnderline,
	MethodLettersNumbersUnderline,
	MethodNumbersLetters,
}

// Methods returns every supported method in display order.
func Methods() []Method {
	out := make([]Method, len(methods))
	copy(out, methods)
	return out
}

// ParseMethod accepts a method name case-insensitively.
func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, m := range methods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", &ConfigurationError{Field: "method", Reason: fmt.Sprintf("unknown method %q", s)}
}

// Limits of the run configuration surface.
const (
	MinNames       = 1
	MaxNames       = 1000
	MinLength      = 3
	MaxLength      = 20
	MinConcurrency = 1
	MaxConcurrency = 100

	BirthdayLayout = "2006-01-02"
)

// RunConfig is immutable for the duration of one run.
type RunConfig struct {
	Names       int
	Length      int
	Method      Method
	Concurrency int
	Birthday    string
}

// Validate checks the configuration surface ranges.
func (c RunConfig) Validate() error {
	switch {
	case c.Names < MinNames || c.Names > MaxNames:
		return &ConfigurationError{Field: "names", Reason: fmt.Sprintf("must be between %d and %d", MinNames, MaxNames)}
	case c.Length < MinLength || c.Length > MaxLength:
		return &ConfigurationError{Field: "length", Reason: fmt.Sprintf("must be between %d and %d", MinLength, MaxLength)}
	case c.Concurrency < MinConcurrency || c.Concurrency > MaxConcurrency:
		return &ConfigurationError{Field: "concurrency", Reason: fmt.Sprintf("must be between %d and %d", MinConcurrency, MaxConcurrency)}
	}
	if _, err := ParseMethod(string(c.Method)); err != nil {
		return err
	}
	if err := ValidateBirthday(c.Birthday); err != nil {
		return err
	}
	return nil
}

// ValidateBirthday reports whether s is a YYYY-MM-DD calendar date.
func ValidateBirthday(s string) error {
	if s == "" {
		return &ConfigurationError{Field: "birthday", Reason: "is required"}
	}
	if _, err := time.Parse(BirthdayLayout, s); err != nil {
		return &ConfigurationError{Field: "birthday", Reason: "must be formatted as YYYY-MM-DD"}
	}
	return nil
}

// ConfigurationError reports a missing or out-of-range parameter.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

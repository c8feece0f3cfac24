package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost        = 12
	DefaultMinLength  = 8
	DefaultSpecialSet = "!@#$%^&*()-_=+[]{};:'\",.<>/?\\|`~"
)

// Rule identifies a single password requirement.
type Rule string

const (
	RuleMinLength Rule = "min_length"
	RuleUppercase Rule = "uppercase"
	RuleLowercase Rule = "lowercase"
	RuleDigit     Rule = "digit"
	RuleSpecial   Rule = "special"
)

// ruleOrder fixes the evaluation and reporting order.
var ruleOrder = []Rule{RuleMinLength, RuleUppercase, RuleLowercase, RuleDigit, RuleSpecial}

// PolicyConfig parameterizes the rule set.
type PolicyConfig struct {
	MinLength    int
	SpecialChars string
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		MinLength:    DefaultMinLength,
		SpecialChars: DefaultSpecialSet,
	}
}

// PasswordValidationError aggregates every unmet rule. The violation list
// carries no sensitive data and is safe to return to the caller verbatim.
type PasswordValidationError struct {
	Violations []Rule
}

func (e *PasswordValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "password does not meet policy"
	}
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, RuleMessage(v))
	}
	return "password " + strings.Join(msgs, "; ")
}

// PasswordPolicy evaluates password strength. Every rule is checked on
// every call so callers can report all unmet rules at once instead of
// revealing them one at a time.
type PasswordPolicy struct {
	config PolicyConfig
}

func NewPasswordPolicy(config PolicyConfig) *PasswordPolicy {
	if config.MinLength <= 0 {
		config.MinLength = DefaultMinLength
	}
	if config.SpecialChars == "" {
		config.SpecialChars = DefaultSpecialSet
	}
	return &PasswordPolicy{config: config}
}

// Evaluate returns the unmet rules in a stable, deterministic order.
// An empty password violates all five rules.
func (p *PasswordPolicy) Evaluate(password string) []Rule {
	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
		if strings.ContainsRune(p.config.SpecialChars, r) {
			hasSpecial = true
		}
	}

	satisfied := map[Rule]bool{
		RuleMinLength: len(password) >= p.config.MinLength,
		RuleUppercase: hasUpper,
		RuleLowercase: hasLower,
		RuleDigit:     hasDigit,
		RuleSpecial:   hasSpecial,
	}

	var violations []Rule
	for _, rule := range ruleOrder {
		if !satisfied[rule] {
			violations = append(violations, rule)
		}
	}
	return violations
}

// IsValid reports whether password satisfies every rule.
func (p *PasswordPolicy) IsValid(password string) bool {
	return len(p.Evaluate(password)) == 0
}

// Validate returns a *PasswordValidationError aggregating all unmet rules,
// for use at a validation boundary. Business logic should prefer Evaluate.
func (p *PasswordPolicy) Validate(password string) error {
	violations := p.Evaluate(password)
	if len(violations) > 0 {
		return &PasswordValidationError{Violations: violations}
	}
	return nil
}

// RuleMessage returns the human-readable description of a rule violation.
func RuleMessage(rule Rule) string {
	switch rule {
	case RuleMinLength:
		return fmt.Sprintf("must be at least %d characters", DefaultMinLength)
	case RuleUppercase:
		return "must contain at least one uppercase letter"
	case RuleLowercase:
		return "must contain at least one lowercase letter"
	case RuleDigit:
		return "must contain at least one digit"
	case RuleSpecial:
		return "must contain at least one special character"
	default:
		return string(rule)
	}
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

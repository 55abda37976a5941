package application

import (
	"github.com/natours/natours-api/internal/domain/entity"
	"github.com/natours/natours-api/pkg/validation"
)

const maxNameLen = 80

// Rule sets are evaluated before any store call. They are built per call so
// callers can inspect them without sharing mutable state.

func SignupRules() *validation.RuleSet {
	return validation.NewRuleSet().
		Field("name", validation.Required(), validation.MaxLen(maxNameLen)).
		Field("email", validation.Required(), validation.Email()).
		Field("password", validation.Required(), validation.MinLen(validation.MinPasswordLen)).
		Field("passwordConfirm", validation.Required(), validation.EqualsField("password"))
}

func LoginRules() *validation.RuleSet {
	return validation.NewRuleSet().
		Field("email", validation.Required()).
		Field("password", validation.Required())
}

func ForgotPasswordRules() *validation.RuleSet {
	return validation.NewRuleSet().
		Field("email", validation.Required(), validation.Email())
}

// PasswordRules guard every path that sets a new password.
func PasswordRules() *validation.RuleSet {
	return validation.NewRuleSet().
		Field("password", validation.Required(), validation.MinLen(validation.MinPasswordLen)).
		Field("passwordConfirm", validation.Required(), validation.EqualsField("password"))
}

// ProfileRules apply to self-service profile updates; absent fields pass.
func ProfileRules() *validation.RuleSet {
	return validation.NewRuleSet().
		Field("name", validation.MaxLen(maxNameLen)).
		Field("email", validation.Email())
}

func AdminUpdateRules() *validation.RuleSet {
	return ProfileRules().
		Field("role", validation.OneOf(entity.RoleNames()...)).
		Field("active", validation.OneOf("true", "false"))
}

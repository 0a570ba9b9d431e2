package rules

import (
	"github.com/trezcool/tadris/core/user"
	v "github.com/trezcool/tadris/core/validation"
)

const (
	passwordMinLen = 8
	nameMaxLen     = 255
	phoneMaxLen    = 20
)

func authRules() []v.RuleSet {
	return []v.RuleSet{
		{
			Operation: OpLogin,
			Fields: []v.FieldConstraint{
				v.Field("email", "البريد الإلكتروني", v.Required(), v.Email()),
				v.Field("password", "كلمة المرور", v.Required(), v.String()),
				v.Field("remember", "تذكرني", v.Sometimes(), v.Boolean()),
			},
		},
		{
			Operation: OpRegister,
			Fields: []v.FieldConstraint{
				v.Field("name", "الاسم", v.Required(), v.String(), v.Max(nameMaxLen), v.Tag("arabic_name")),
				v.Field("email", "البريد الإلكتروني", v.Required(), v.Email(), v.Max(nameMaxLen), v.Unique("users", "email")),
				v.Field("phone", "رقم الهاتف", v.Nullable(), v.String(), v.Max(phoneMaxLen), v.Unique("users", "phone")),
				v.Field("password", "كلمة المرور", v.Required(), v.String(), v.Min(passwordMinLen), v.Confirmed(), v.Password("name", "email")),
				v.Field("role", "نوع الحساب", v.Required(), v.In(user.RoleStudent, user.RoleParent)),
			},
		},
		{
			Operation: OpForgotPassword,
			Fields: []v.FieldConstraint{
				v.Field("email", "البريد الإلكتروني", v.Required(), v.Email(), v.Exists("users", "email")),
			},
		},
		{
			Operation: OpResetPassword,
			Fields: []v.FieldConstraint{
				v.Field("uid", "المعرف", v.Required(), v.String()),
				v.Field("token", "الرمز", v.Required(), v.String()),
				v.Field("password", "كلمة المرور", v.Required(), v.String(), v.Min(passwordMinLen), v.Confirmed(), v.Password()),
			},
		},
		{
			Operation: OpChangePassword,
			Roles:     members,
			Fields: []v.FieldConstraint{
				v.Field("current_password", "كلمة المرور الحالية", v.Required(), v.String()),
				v.Field("password", "كلمة المرور الجديدة", v.Required(), v.String(), v.Min(passwordMinLen), v.Confirmed(), v.Password()),
			},
		},
		{
			Operation: OpUpdateProfile,
			Roles:     members,
			Fields: []v.FieldConstraint{
				v.Field("name", "الاسم", v.Sometimes(), v.Required(), v.String(), v.Max(nameMaxLen), v.Tag("arabic_name")),
				v.Field("email", "البريد الإلكتروني", v.Sometimes(), v.Required(), v.Email(), v.Max(nameMaxLen),
					v.UniqueIgnoring("users", "email", v.IgnorePrincipal)),
				v.Field("phone", "رقم الهاتف", v.Nullable(), v.String(), v.Max(phoneMaxLen),
					v.UniqueIgnoring("users", "phone", v.IgnorePrincipal)),
				v.Field("avatar", "الصورة الشخصية", v.Nullable(), v.String(), v.Max(nameMaxLen)),
			},
		},
	}
}

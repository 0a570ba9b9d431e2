package user

import (
	"bufio"
	_ "embed"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

var (
	// password policy
	pwdMinLen     = 8
	pwdMinLenText = "يجب ألا تقل كلمة المرور عن 8 أحرف."

	pwdNoSpaceText = "يجب ألا تحتوي كلمة المرور على مسافات."

	pwdNotAllNumText = "لا يمكن أن تتكون كلمة المرور من أرقام فقط."

	pwdComplexityText = "يجب أن تحتوي كلمة المرور على حرف كبير وحرف صغير ورقم ورمز خاص على الأقل."
	specialRegex      = regexp.MustCompile("[^\\p{L}\\p{N}]")

	pwdMaxSim      = .7
	pwdAttrSimText = "كلمة المرور مشابهة جدًا لبيانات الحساب."

	pwdNoCommonText = "كلمة المرور شائعة جدًا."

	commonPasswords = loadCommonPasswords(commonPasswordsFile)
)

//go:embed common-passwords.txt
var commonPasswordsFile string

func loadCommonPasswords(src string) []string {
	pwds := make([]string, 0, 160)
	scanner := bufio.NewScanner(strings.NewReader(src))
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			pwds = append(pwds, strings.ToLower(pwd))
		}
	}
	sort.Strings(pwds)
	return pwds
}

// PasswordPolicy applies the password policy to pwd and returns the first violation, or "":
// - minLen: 8
// - no whitespace
// - no all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - no user attrs similarity
// - no common password
func PasswordPolicy(pwd string, attrs ...string) string {
	var (
		digitCount                             int
		hasUpper, hasLower, hasDig, hasSpecial bool
	)

	// - minLen: 8
	pwdLen := utf8.RuneCountInString(pwd)
	if pwdLen < pwdMinLen {
		return pwdMinLenText
	}
	for _, char := range pwd {
		// - no whitespace
		if unicode.IsSpace(char) {
			return pwdNoSpaceText
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	// - not all numeric
	if digitCount == pwdLen {
		return pwdNotAllNumText
	}

	// - complexity: 1 upper, 1 lower, 1 digit & 1 special
	hasDig = digitCount > 0
	hasSpecial = specialRegex.MatchString(pwd)
	if !(hasUpper && hasLower && hasDig && hasSpecial) {
		return pwdComplexityText
	}

	// - no user attrs similarity
	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if similarity(lpwd, strings.ToLower(attr)) >= pwdMaxSim {
			return pwdAttrSimText
		}
		// the local part of an email counts on its own
		if at := strings.IndexByte(attr, '@'); at > 0 && similarity(lpwd, strings.ToLower(attr[:at])) >= pwdMaxSim {
			return pwdAttrSimText
		}
	}

	// - no common passwords
	if idx := sort.SearchStrings(commonPasswords, lpwd); idx < len(commonPasswords) && commonPasswords[idx] == lpwd {
		return pwdNoCommonText
	}
	return ""
}

func similarity(pwd, attr string) float64 {
	if attr == "" {
		return 0
	}
	return difflib.NewMatcher(strings.Split(pwd, ""), strings.Split(attr, "")).Ratio()
}

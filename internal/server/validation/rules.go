package validation

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/harvesthub/internal/server/passwords"
)

const dateLayout = "2006-01-02"

var disposableDomains = map[string]struct{}{
	"mailinator.com":    {},
	"tempmail.com":      {},
	"10minutemail.com":  {},
	"guerrillamail.com": {},
	"throwawaymail.com": {},
	"yopmail.com":       {},
	"dispostable.com":   {},
	"getairmail.com":    {},
	"trashmail.com":     {},
	"maildrop.cc":       {},
}

var (
	allowedTLD = regexp.MustCompile(`(?i)\.(com|org|net|edu|gov|co|uk|ca|au|in|io|me|xyz|info)$`)
	ukMobile   = regexp.MustCompile(`^07\d{9}$`)
	spaces     = regexp.MustCompile(`\s+`)
)

func emailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

func isNotDisposable(fl validator.FieldLevel) bool {
	_, blocked := disposableDomains[emailDomain(fl.Field().String())]
	return !blocked
}

func hasAllowedTLD(fl validator.FieldLevel) bool {
	return allowedTLD.MatchString(emailDomain(fl.Field().String()))
}

func hasUpper(fl validator.FieldLevel) bool  { return passwords.HasUpper(fl.Field().String()) }
func hasDigit(fl validator.FieldLevel) bool  { return passwords.HasDigit(fl.Field().String()) }
func hasSymbol(fl validator.FieldLevel) bool { return passwords.HasSymbol(fl.Field().String()) }

func bcryptSafe(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= passwords.MaxBytes
}

func isUKMobile(fl validator.FieldLevel) bool {
	return ukMobile.MatchString(fl.Field().String())
}

// NormalizePhone drops spaces and a leading "+" and rewrites a
// 44-prefixed UK number to its 0-prefixed national form, so
// "+44 7123 456789" becomes "07123456789". Any other character is kept so
// the ukmobile rule rejects it.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	compact := strings.TrimPrefix(spaces.ReplaceAllString(phone, ""), "+")
	if compact == "" {
		return phone
	}
	if strings.HasPrefix(compact, "44") && len(compact) == 12 {
		return "0" + compact[2:]
	}
	return compact
}

func isISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse(dateLayout, fl.Field().String())
	return err == nil
}

// Age is the number of whole years between dob and now, counting a year
// only once the birthday has been reached.
func Age(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// ageRule builds minage / maxage / birthyear checks bound to a clock.
func ageRule(now func() time.Time, check func(dob, now time.Time, param int) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		dob, err := time.Parse(dateLayout, fl.Field().String())
		if err != nil {
			return false
		}
		param, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return check(dob, now(), param)
	}
}

func minAge(dob, now time.Time, years int) bool { return Age(dob, now) >= years }
func maxAge(dob, now time.Time, years int) bool { return Age(dob, now) <= years }

// birthYear requires the year of birth to lie in [now.Year()-span, now.Year()].
func birthYear(dob, now time.Time, span int) bool {
	return dob.Year() >= now.Year()-span && dob.Year() <= now.Year()
}

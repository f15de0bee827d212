// Package validation turns a raw registration payload into a normalised,
// type-specific AccountInput, or reports every failing field at once.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/dmitrijs2005/harvesthub/internal/server/models"
)

type commonRules struct {
	Email           string `json:"email" validate:"required,email,notdisposable,allowedtld"`
	FirstName       string `json:"firstName" validate:"required"`
	LastName        string `json:"lastName" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,bcryptsafe,hasupper,hasdigit,hassymbol"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	AccountType     string `json:"accountType" validate:"required,oneof=individual business"`
}

type businessRules struct {
	BusinessName       string `json:"businessName" validate:"required"`
	RegistrationNumber string `json:"registrationNumber" validate:"required"`
}

type individualRules struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,ukmobile"`
	DateOfBirth string `json:"dateOfBirth" validate:"required,isodate,minage=18,maxage=100,birthyear=100"`
}

// Validator checks registration payloads. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
	now      func() time.Time
}

// Option customises a Validator.
type Option func(*Validator)

// WithClock replaces time.Now for age checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

func New(opts ...Option) (*Validator, error) {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	v.trans = trans
	if err := entranslations.RegisterDefaultTranslations(v.validate, trans); err != nil {
		return nil, fmt.Errorf("register translations: %w", err)
	}

	rules := map[string]validator.Func{
		"notdisposable": isNotDisposable,
		"allowedtld":    hasAllowedTLD,
		"hasupper":      hasUpper,
		"hasdigit":      hasDigit,
		"hassymbol":     hasSymbol,
		"bcryptsafe":    bcryptSafe,
		"ukmobile":      isUKMobile,
		"isodate":       isISODate,
		"minage":        ageRule(v.clock, minAge),
		"maxage":        ageRule(v.clock, maxAge),
		"birthyear":     ageRule(v.clock, birthYear),
	}
	for tag, fn := range rules {
		if err := v.validate.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("register %s: %w", tag, err)
		}
	}

	messages := map[string]string{
		"email":         "{0} must be a valid email address",
		"notdisposable": "disposable email addresses are not accepted",
		"allowedtld":    "email domain is not supported",
		"min":           "{0} must be at least {1} characters long",
		"hasupper":      "{0} must contain an uppercase letter",
		"hasdigit":      "{0} must contain a number",
		"hassymbol":     "{0} must contain a special character",
		"bcryptsafe":    "{0} must be at most 72 bytes long",
		"eqfield":       "passwords do not match",
		"oneof":         "{0} must be one of: {1}",
		"ukmobile":      "enter a valid UK mobile number (07xxxxxxxxx)",
		"isodate":       "{0} must be a valid date in YYYY-MM-DD format",
	}
	for tag, text := range messages {
		if err := v.addMessage(tag, text, fieldAndParam); err != nil {
			return nil, err
		}
	}

	// age messages name the limit, not the field
	if err := v.addMessage("minage", "must be at least {0} years old", paramOnly); err != nil {
		return nil, err
	}
	if err := v.addMessage("maxage", "cannot be older than {0} years", paramOnly); err != nil {
		return nil, err
	}
	err := v.addMessage("birthyear", "year of birth must be between {0} and {1}", func(fe validator.FieldError) []string {
		span, _ := strconv.Atoi(fe.Param())
		year := v.clock().Year()
		return []string{strconv.Itoa(year - span), strconv.Itoa(year)}
	})
	if err != nil {
		return nil, err
	}

	return v, nil
}

func fieldAndParam(fe validator.FieldError) []string { return []string{fe.Field(), fe.Param()} }
func paramOnly(fe validator.FieldError) []string     { return []string{fe.Param()} }

func (v *Validator) clock() time.Time {
	return v.now()
}

func (v *Validator) addMessage(tag, text string, params func(validator.FieldError) []string) error {
	err := v.validate.RegisterTranslation(tag, v.trans,
		func(t ut.Translator) error {
			return t.Add(tag, text, true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(tag, params(fe)...)
			if err != nil {
				return fe.Error()
			}
			return msg
		})
	if err != nil {
		return fmt.Errorf("register %s message: %w", tag, err)
	}
	return nil
}

// Validate trims every string, normalises email and phone, and checks the
// shared fields plus the branch selected by accountType. All failing fields
// are reported together in a *Errors.
func (v *Validator) Validate(p Payload) (AccountInput, error) {
	c := commonRules{
		Email:           strings.ToLower(strings.TrimSpace(p.Email)),
		FirstName:       strings.TrimSpace(p.FirstName),
		LastName:        strings.TrimSpace(p.LastName),
		Password:        strings.TrimSpace(p.Password),
		ConfirmPassword: strings.TrimSpace(p.ConfirmPassword),
		AccountType:     strings.TrimSpace(p.AccountType),
	}

	var fields []FieldError
	fields = append(fields, v.check(c)...)

	common := Common{
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Password:  c.Password,
		Enable2FA: p.Enable2FA,
	}

	var input AccountInput
	switch models.AccountType(c.AccountType) {
	case models.AccountTypeBusiness:
		b := businessRules{
			BusinessName:       strings.TrimSpace(p.BusinessName),
			RegistrationNumber: strings.TrimSpace(p.RegistrationNumber),
		}
		fields = append(fields, v.check(b)...)

		out := Business{Common: common, BusinessName: b.BusinessName, RegistrationNumber: b.RegistrationNumber}
		if doc := strings.TrimSpace(p.BusinessDocument); doc != "" {
			out.BusinessDocument = &doc
		}
		input = out

	case models.AccountTypeIndividual:
		i := individualRules{
			PhoneNumber: NormalizePhone(p.PhoneNumber),
			DateOfBirth: strings.TrimSpace(p.DateOfBirth),
		}
		fields = append(fields, v.check(i)...)

		dob, _ := time.Parse(dateLayout, i.DateOfBirth)
		input = Individual{Common: common, PhoneNumber: i.PhoneNumber, DateOfBirth: dob}
	}

	if len(fields) > 0 {
		return nil, &Errors{Fields: fields}
	}
	return input, nil
}

func (v *Validator) check(s any) []FieldError {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Tag: fe.Tag(), Message: fe.Translate(v.trans)})
	}
	return out
}

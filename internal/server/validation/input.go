package validation

import (
	"time"

	"github.com/dmitrijs2005/harvesthub/internal/server/models"
)

// Payload is the raw registration body as decoded from JSON. Unknown JSON
// fields are dropped by the decoder.
type Payload struct {
	Email              string `json:"email"`
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	Password           string `json:"password"`
	ConfirmPassword    string `json:"confirmPassword"`
	AccountType        string `json:"accountType"`
	BusinessName       string `json:"businessName,omitempty"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
	BusinessDocument   string `json:"businessDocument,omitempty"`
	PhoneNumber        string `json:"phoneNumber,omitempty"`
	DateOfBirth        string `json:"dateOfBirth,omitempty"`
	RecaptchaToken     string `json:"recaptchaToken"`
	Enable2FA          bool   `json:"enable2FA"`
}

// AccountInput is a validated, normalised registration: either Individual
// or Business. Fields of the other variant do not exist on it.
type AccountInput interface {
	Base() Common
	Type() models.AccountType
}

// Common holds the fields shared by both account types.
type Common struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
	Enable2FA bool
}

type Individual struct {
	Common
	PhoneNumber string
	DateOfBirth time.Time
}

func (i Individual) Base() Common             { return i.Common }
func (i Individual) Type() models.AccountType { return models.AccountTypeIndividual }

type Business struct {
	Common
	BusinessName       string
	RegistrationNumber string
	// BusinessDocument is an object-storage key, or nil when none was uploaded.
	BusinessDocument *string
}

func (b Business) Base() Common             { return b.Common }
func (b Business) Type() models.AccountType { return models.AccountTypeBusiness }

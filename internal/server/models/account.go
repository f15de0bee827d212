// Package models defines server-side data models persisted in the database.
package models

import "time"

// AccountType discriminates the two kinds of marketplace account.
type AccountType string

const (
	AccountTypeIndividual AccountType = "individual"
	AccountTypeBusiness   AccountType = "business"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	return t == AccountTypeIndividual || t == AccountTypeBusiness
}

// Account is a registered marketplace user. Exactly one of the business
// group (BusinessName, RegistrationNumber, BusinessDocument) or the personal
// group (PhoneNumber, DateOfBirth) is populated, depending on AccountType;
// the other group is nil and stored as NULL.
type Account struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	AccountType  AccountType

	BusinessName       *string
	RegistrationNumber *string
	BusinessDocument   *string

	PhoneNumber *string
	DateOfBirth *time.Time

	EmailVerified    bool
	TwoFactorEnabled bool
	TwoFactorSecret  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsBusiness reports whether the account belongs to a farmer/business.
func (a *Account) IsBusiness() bool {
	return a.AccountType == AccountTypeBusiness
}

package passwords

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for new accounts.
const DefaultCost = 10

// Hasher produces salted bcrypt hashes.
type Hasher struct {
	cost int
}

// NewHasher falls back to DefaultCost when cost is outside bcrypt's range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

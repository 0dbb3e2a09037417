package service

import (
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"wallet-ledger/pkg/apperror"
)

var pinRe = regexp.MustCompile(`^[0-9]{4}$`)

// ValidPinFormat reports whether pin is exactly 4 ASCII digits.
func ValidPinFormat(pin string) bool {
	return pinRe.MatchString(pin)
}

// BcryptPinService implements ports.PinService using bcrypt.
type BcryptPinService struct {
	cost int
}

// NewBcryptPinService creates a PIN service with the given bcrypt cost.
// Out-of-range costs fall back to bcrypt.DefaultCost.
func NewBcryptPinService(cost int) *BcryptPinService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPinService{cost: cost}
}

// Hash derives a salted bcrypt hash from a well-formed PIN.
func (s *BcryptPinService) Hash(pin string) (string, error) {
	if !ValidPinFormat(pin) {
		return "", apperror.ErrInvalidPinFormat()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.cost)
	if err != nil {
		return "", apperror.InternalError(err)
	}
	return string(hash), nil
}

// Verify checks a PIN against its stored hash. Fail-closed: a malformed
// PIN returns false without consulting the hash.
func (s *BcryptPinService) Verify(pin string, hash string) bool {
	if !ValidPinFormat(pin) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

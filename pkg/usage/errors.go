package usage

import "errors"

// ErrEmptyUserID is returned for operations called without a user
var ErrEmptyUserID = errors.New("user id is required")

// AsQuotaExceeded unwraps err to a *QuotaExceededError
func AsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

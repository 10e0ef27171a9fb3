package totpx

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Period is the TOTP time-step in seconds.
const Period = 30

// Codes holds the codes accepted at a given instant: the one for the
// current 30-second step and the one for the step before it.
type Codes struct {
	Current  string
	Previous string
}

var opts = totp.ValidateOpts{
	Period:    Period,
	Skew:      0,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// WindowCodes computes the codes accepted at now for the given base32 seed.
func WindowCodes(seed string, now time.Time) (Codes, error) {
	current, err := totp.GenerateCodeCustom(seed, now, opts)
	if err != nil {
		return Codes{}, fmt.Errorf("totpx: generate current code: %w", err)
	}

	previous, err := totp.GenerateCodeCustom(seed, now.Add(-Period*time.Second), opts)
	if err != nil {
		return Codes{}, fmt.Errorf("totpx: generate previous code: %w", err)
	}

	return Codes{Current: current, Previous: previous}, nil
}

// Matches reports whether code equals the current or previous window code.
// Comparisons are constant-time.
func (c Codes) Matches(code string) bool {
	cur := subtle.ConstantTimeCompare([]byte(code), []byte(c.Current))
	prev := subtle.ConstantTimeCompare([]byte(code), []byte(c.Previous))
	return cur == 1 || prev == 1
}

package unibet

import (
	"fmt"

	"github.com/phoenixbet/phoenix/internal/unibet/fingerprint"
)

// Identity is the stable browser persona an account presents: the login
// credentials plus the user agent, screen resolution and fingerprint hash
// derived deterministically from them. The same account always resolves to
// the same persona, so the platform sees one consistent device.
type Identity struct {
	Username    string
	Secret      string
	Region      string
	UserAgent   string
	Resolution  [2]int
	Fingerprint string
}

// NewIdentity derives the persona for an account. Fails for regions without
// a timezone mapping, so misconfiguration surfaces at construction and not
// mid-login.
func NewIdentity(username, secret, region string) (Identity, error) {
	ua := fingerprint.PickUserAgent(username, region)
	res := fingerprint.PickResolution(username, region)
	hash, err := fingerprint.Generate(ua, res, region)
	if err != nil {
		return Identity{}, fmt.Errorf("derive fingerprint: %w", err)
	}
	return Identity{
		Username:    username,
		Secret:      secret,
		Region:      region,
		UserAgent:   ua,
		Resolution:  res,
		Fingerprint: hash,
	}, nil
}

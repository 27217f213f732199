package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrChallengeInvalid signals an access challenge that must not be signed:
// expired, issued to a different address, or otherwise malformed. Refusing
// early avoids spending an owner signature on a token the access-control
// service would reject anyway.
var ErrChallengeInvalid = errors.New("transfer: access challenge invalid")

// validateChallenge checks the challenge token issued by the content
// access-control service: HMAC signature under the shared secret, audience
// matching the address the challenge was requested for, and an expiry.
func validateChallenge(token, address string, secret []byte, now func() time.Time) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrChallengeInvalid)
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithAudience(address),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeInvalid, err)
	}
	if !parsed.Valid {
		return fmt.Errorf("%w: token did not validate", ErrChallengeInvalid)
	}
	return nil
}

// signedRegrant runs the off-chain phase: obtain a challenge for the
// seller, vet it, sign it, and ask the store to move document access to
// the buyer. The regrant is idempotent on the store side, so callers may
// safely re-invoke on failure.
func signedRegrant(ctx context.Context, access AccessController, signer Signer, secret []byte, now func() time.Time, seller, buyer, documentCID string) error {
	token, err := access.IssueAccessChallenge(ctx, seller)
	if err != nil {
		return fmt.Errorf("issue challenge for %s: %w", seller, err)
	}
	if err := validateChallenge(token, seller, secret, now); err != nil {
		return err
	}
	sig, err := signer.Sign([]byte(token))
	if err != nil {
		return fmt.Errorf("sign challenge: %w", err)
	}
	if err := access.RegrantAccess(ctx, documentCID, seller, buyer, sig); err != nil {
		return fmt.Errorf("regrant document %s: %w", documentCID, err)
	}
	return nil
}

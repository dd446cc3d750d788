package signup

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StepClaims is the anti-forgery token carried by every step request. A
// token is only good for one step number; tokens for steps 2-4 are bound to
// the submission they were issued for.
type StepClaims struct {
	Step         int    `json:"step"`
	SubmissionID string `json:"submissionId,omitempty"`
	jwt.RegisteredClaims
}

// StepTokens issues and verifies step-scoped tokens.
type StepTokens struct {
	secret []byte
	ttl    time.Duration
}

func NewStepTokens(secret string, ttl time.Duration) *StepTokens {
	return &StepTokens{secret: []byte(secret), ttl: ttl}
}

// Issue creates a token good for exactly one step. submissionID is empty
// only for the bootstrap step-1 token.
func (t *StepTokens) Issue(step int, submissionID string) (string, error) {
	claims := StepClaims{
		Step:         step,
		SubmissionID: submissionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify checks the token is valid, scoped to the given step, and (for
// steps past 1) bound to the given submission.
func (t *StepTokens) Verify(tokenStr string, step int, submissionID string) error {
	token, err := jwt.ParseWithClaims(tokenStr, &StepClaims{}, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return err
	}
	claims, ok := token.Claims.(*StepClaims)
	if !ok || !token.Valid {
		return jwt.ErrSignatureInvalid
	}
	if claims.Step != step {
		return fmt.Errorf("token scoped to step %d, not %d", claims.Step, step)
	}
	if step > 1 && claims.SubmissionID != submissionID {
		return fmt.Errorf("token not bound to this submission")
	}
	return nil
}

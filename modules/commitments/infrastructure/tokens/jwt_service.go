package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pactline/pactline/modules/commitments/services"
)

type linkClaims struct {
	Purpose string `json:"pur"`
	Version int    `json:"ver"`
	jwt.RegisteredClaims
}

// JWTService issues and verifies the bearer tokens embedded in public
// approval/acceptance links. A token binds commitment id (subject), version
// and purpose; expiry is enforced by the standard claims.
type JWTService struct {
	secret        []byte
	approvalTTL   time.Duration
	acceptanceTTL time.Duration
	clock         func() time.Time
}

func NewJWTService(secret string, approvalTTL, acceptanceTTL time.Duration) *JWTService {
	return &JWTService{
		secret:        []byte(secret),
		approvalTTL:   approvalTTL,
		acceptanceTTL: acceptanceTTL,
		clock:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *JWTService) Issue(commitmentID uuid.UUID, version int, purpose string) (string, error) {
	ttl := s.approvalTTL
	if purpose == services.PurposeAcceptance {
		ttl = s.acceptanceTTL
	}
	now := s.clock()
	claims := linkClaims{
		Purpose: purpose,
		Version: version,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   commitmentID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify decodes a token. An expired but otherwise valid token still returns
// its claims with Expired=true, so the boundary can say which link expired
// instead of failing generically.
func (s *JWTService) Verify(raw string) (services.TokenClaims, error) {
	claims := &linkClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	expired := false
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			return services.TokenClaims{}, services.ErrTokenInvalid.Wrap(err)
		}
		expired = true
	} else if token == nil || !token.Valid {
		return services.TokenClaims{}, services.ErrTokenInvalid
	}

	commitmentID, parseErr := uuid.Parse(claims.Subject)
	if parseErr != nil {
		return services.TokenClaims{}, services.ErrTokenInvalid.Wrap(parseErr)
	}
	return services.TokenClaims{
		CommitmentID: commitmentID,
		Version:      claims.Version,
		Purpose:      claims.Purpose,
		Expired:      expired,
	}, nil
}

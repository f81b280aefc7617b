package services

import (
	"github.com/google/uuid"

	"github.com/pactline/pactline/pkg/serrors"
)

const (
	PurposeApproval   = "APPROVAL"
	PurposeAcceptance = "ACCEPTANCE"
)

// TokenClaims is what a verified public link token carries. Expired tokens
// still surface their claims so the boundary can say which link expired.
type TokenClaims struct {
	CommitmentID uuid.UUID
	Version      int
	Purpose      string
	Expired      bool
}

// TokenService is the bearer-capability collaborator: it binds a commitment
// id, version and purpose into an opaque token handed to the client.
type TokenService interface {
	Issue(commitmentID uuid.UUID, version int, purpose string) (string, error)
	Verify(token string) (TokenClaims, error)
}

var (
	ErrTokenExpired = serrors.NewError(serrors.CodeTokenExpired, "this link has expired", "Commitments.Errors.TokenExpired")
	ErrTokenInvalid = serrors.NewError(serrors.CodeTokenInvalid, "this link is not valid", "Commitments.Errors.TokenInvalid")
	// ErrTokenVersionMismatch means the commitment moved to a newer version
	// after the link was issued: "this link is outdated".
	ErrTokenVersionMismatch = serrors.NewError(serrors.CodeTokenVersionMismatch, "this link belongs to an older version of the commitment", "Commitments.Errors.TokenVersionMismatch")
)

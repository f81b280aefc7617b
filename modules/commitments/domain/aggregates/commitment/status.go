package commitment

import (
	"fmt"
	"strings"

	"github.com/pactline/pactline/pkg/serrors"
)

type Status string

const (
	StatusDraft                  Status = "DRAFT"
	StatusInternalReview         Status = "INTERNAL_REVIEW"
	StatusAwaitingClientApproval Status = "AWAITING_CLIENT_APPROVAL"
	StatusInProgress             Status = "IN_PROGRESS"
	StatusChangeRequestCreated   Status = "CHANGE_REQUEST_CREATED"
	StatusDelivered              Status = "DELIVERED"
	StatusAccepted               Status = "ACCEPTED"
	StatusClosed                 Status = "CLOSED"
	StatusCancelled              Status = "CANCELLED"
)

// legacyAliases maps wire-level status names still emitted by older
// integrations onto the canonical vocabulary. The table lives only at the
// parse boundary; aliases are never stored.
var legacyAliases = map[string]Status{
	"PENDING_APPROVAL":   StatusAwaitingClientApproval,
	"CHANGE_REQUESTED":   StatusChangeRequestCreated,
	"PENDING_ACCEPTANCE": StatusDelivered,
	"COMPLETED":          StatusAccepted,
}

var validStatuses = map[Status]struct{}{
	StatusDraft:                  {},
	StatusInternalReview:         {},
	StatusAwaitingClientApproval: {},
	StatusInProgress:             {},
	StatusChangeRequestCreated:   {},
	StatusDelivered:              {},
	StatusAccepted:               {},
	StatusClosed:                 {},
	StatusCancelled:              {},
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if alias, ok := legacyAliases[string(s)]; ok {
		return alias, nil
	}
	if _, ok := validStatuses[s]; ok {
		return s, nil
	}
	return "", serrors.NewError(
		serrors.CodeValidation,
		fmt.Sprintf("unknown commitment status: %q", raw),
		"Commitments.Errors.UnknownStatus",
	).WithTemplateData(map[string]string{"status": raw})
}

func (s Status) String() string { return string(s) }

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

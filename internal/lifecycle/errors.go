package lifecycle

import (
	"errors"
	"fmt"

	"github.com/tradefin-io/tradefingo/internal/models"
)

// ErrUnknownDocument means the referenced document does not exist.
var ErrUnknownDocument = errors.New("lifecycle: unknown document")

// InvalidTransitionError is returned when an actor attempts an action the
// transition table does not permit from the document's current state. It
// names the current status and the attempting role so a rejection is
// auditable, not just "forbidden".
type InvalidTransitionError struct {
	DocType models.DocType
	Status  models.DocStatus
	Role    models.Role
	Action  models.Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: action %s by role %s not permitted on %s in status %s",
		e.Action, e.Role, e.DocType, e.Status)
}

// ConfigurationError means the transition table itself is malformed. It is
// raised by startup validation and must never occur at runtime.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("transition table invalid: %d problem(s), first: %s", len(e.Problems), e.Problems[0])
}

// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

// SessionID identifies one campaign run. The agent runtime allocates
// these in "session-xxxxxxxx" form.
type SessionID string

// ItemID identifies one generated content item, taken from the content
// agent's asset id.
type ItemID string

// RevisionID identifies one entry in an item's revision history.
type RevisionID string

func NewRevisionID() RevisionID {
	return RevisionID(uuid.New().String())
}

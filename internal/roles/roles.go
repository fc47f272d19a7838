// Package roles holds the role-specific navigation used by UI adapters.
// Messaging behaviour is identical for every role.
package roles

import (
	"fmt"
	"strings"
)

// Role is the marketplace role of the signed-in user.
type Role string

const (
	Employer Role = "employer"
	Employee Role = "employee"
)

// Parse converts a claim value into a Role.
func Parse(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case Employer:
		return Employer, nil
	case Employee, "freelancer":
		return Employee, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Counterpart is the role of the other side of a conversation.
func (r Role) Counterpart() Role {
	if r == Employer {
		return Employee
	}
	return Employer
}

// MessagesPath is the UI route of the messaging view for this role.
func (r Role) MessagesPath() string {
	return "/" + string(r) + "/messages"
}

// ProfilePath is the UI route of a peer's profile as seen from this role.
func (r Role) ProfilePath(peerID string) string {
	return "/" + string(r) + "/" + string(r.Counterpart()) + "-profile/" + peerID
}

package workflow

import (
	"fmt"
	"strings"
)

// DuplicatePolicy decides what the ensure-user step does when the client's
// email is already registered.
type DuplicatePolicy string

const (
	// PolicyReuse looks the existing user up by email and books under its id.
	PolicyReuse DuplicatePolicy = "reuse"
	// PolicyReject fails the submission with domain.ErrDuplicateEntity.
	PolicyReject DuplicatePolicy = "reject"
)

// ParsePolicy reads a policy name. An empty name selects PolicyReuse.
func ParsePolicy(name string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return PolicyReuse, nil
	case PolicyReuse, PolicyReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown duplicate email policy %q", name)
	}
}

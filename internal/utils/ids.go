package utils

import (
	"strings"

	"github.com/google/uuid"
)

const CloneIDPrefix = "clone_u_"

// NewCloneID returns clone_u_ followed by 12 random lowercase hex characters.
func NewCloneID() string {
	return CloneIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

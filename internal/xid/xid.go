package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a random identifier tagged with prefix, e.g. "wiz_1b4e...".
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
	}
	return fmt.Sprintf("%s_%s", prefix, id.String())
}

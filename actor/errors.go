package actor

import (
	"fmt"
	"sort"
	"strings"
)

// UnprovidedSlots is returned by Spawn when def has declared guard/effect
// slots with no bound handler — spec.md §4.F step 1: "fail with
// UnprovidedSlots listing names".
type UnprovidedSlots struct {
	Names []string
}

func (e *UnprovidedSlots) Error() string {
	names := append([]string(nil), e.Names...)
	sort.Strings(names)
	return fmt.Sprintf("actor: unprovisioned slots: %s", strings.Join(names, ", "))
}

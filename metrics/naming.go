package metrics

import (
	"fmt"
	"strings"
)

// EpochCounterName is the synthetic metric holding the epoch index.
const EpochCounterName = "epoch"

const namespaceMarker = "/epoch_"

// counterOwner reserves EpochCounterName in every name table.
var counterOwner = &Entry{name: EpochCounterName}

func stepName(name string) string { return name + "_step" }

func epochName(name string) string { return name + "_epoch" }

func namespacedStepName(name string, epoch int) string {
	return fmt.Sprintf("%s_step%s%d", name, namespaceMarker, epoch)
}

// nameTable maps each published name to the single entry allowed to write it.
type nameTable struct {
	owners map[string]*Entry
}

func newNameTable() *nameTable {
	return &nameTable{owners: map[string]*Entry{EpochCounterName: counterOwner}}
}

func (t *nameTable) tryClaim(name string, e *Entry) bool {
	owner, ok := t.owners[name]
	if ok && owner != e {
		return false
	}
	t.owners[name] = e
	return true
}

// claim reserves preferred for e. When another entry owns it the name is
// namespaced with the epoch, then suffixed with a counter until free.
// fellBack reports whether the returned name differs from preferred.
func (t *nameTable) claim(preferred string, e *Entry, epoch int) (name string, fellBack bool) {
	if t.tryClaim(preferred, e) {
		return preferred, false
	}
	base := preferred
	if !strings.Contains(preferred, namespaceMarker) {
		base = fmt.Sprintf("%s%s%d", preferred, namespaceMarker, epoch)
		if t.tryClaim(base, e) {
			return base, true
		}
	}
	for k := 1; ; k++ {
		candidate := fmt.Sprintf("%s_%d", base, k)
		if t.tryClaim(candidate, e) {
			return candidate, true
		}
	}
}

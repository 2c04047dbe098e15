package trainer

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

// MisconfigurationError reports a module that does not satisfy the driver's
// contract. It is a driver error; the metrics engine never returns it.
type MisconfigurationError struct {
	Hook string
	Keys []string
}

func (e *MisconfigurationError) Error() string {
	quoted := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		quoted[i] = "'" + k + "'"
	}
	return fmt.Sprintf("The key `loss` should be present within %s output. Existing keys: [%s]",
		e.Hook, strings.Join(quoted, ", "))
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *MisconfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("hook", e.Hook).
		Strs("keys", e.Keys).
		Str("type", "MisconfigurationError")
}

func newMisconfigurationError(hook string, out StepOutput) error {
	return errors.WithStack(&MisconfigurationError{Hook: hook, Keys: out.Keys()})
}

func checkLoss(hook string, out StepOutput) error {
	if out == nil {
		return nil
	}
	if _, ok := out.Loss(); !ok {
		return newMisconfigurationError(hook, out)
	}
	return nil
}

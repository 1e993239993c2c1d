package plan

import (
	"github.com/google/uuid"

	"github.com/queryplan-dev/qopt/expr"
)

// NewCorrelationID allocates a fresh, globally-unique correlation scope
// id for an Apply node to introduce. expr.CorrelationID is kept a
// plain [16]byte so scalar expression nodes stay trivially comparable
// (usable as map keys) without expr importing a UUID library itself;
// this constructor is the one place in the module that actually mints
// new scope identity, backed by a real UUID.
func NewCorrelationID() expr.CorrelationID {
	return expr.CorrelationID(uuid.New())
}

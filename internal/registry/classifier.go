package registry

import (
	"strings"

	"cropyield-platform/internal/models"
)

// classifyLoadError maps known deserialization failure signatures to typed
// load-error kinds. Unknown failures fall through to the generic kind; an
// unclassified error must never abort the load loop.
func classifyLoadError(err error) models.LoadErrorKind {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "matrix schema"),
		strings.Contains(msg, "ndarray"):
		return models.LoadErrorMatrixVersion
	case strings.Contains(msg, "regression schema"),
		strings.Contains(msg, "estimator version"):
		return models.LoadErrorRegressionVersion
	default:
		return models.LoadErrorGeneric
	}
}

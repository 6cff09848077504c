package search

import "github.com/raphaelgruber/splunkgo/internal/models"

// classifyOrder is the fixed order severities are checked in.
var classifyOrder = []string{models.SeverityError, models.SeverityFatal}

// Classify inspects the severity -> text mapping from a json mode decode.
// ERROR is checked before FATAL; any other severity is ignored.
// Returns nil when neither marker is present.
func Classify(msgs models.Messages) error {
	for _, sev := range classifyOrder {
		if text, ok := msgs[sev]; ok {
			return &models.SearchError{Severity: sev, Text: text}
		}
	}
	return nil
}

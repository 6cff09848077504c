package models

import (
	"fmt"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// KeyField is the record key field used by KV store collections.
const KeyField = "_key"

// RecordKey extracts a collection record key from a string or a SurrealDB
// RecordID. Returns an error for any other type.
func RecordKey(v any) (string, error) {
	switch id := v.(type) {
	case string:
		return id, nil
	case surrealmodels.RecordID:
		return recordIDString(id)
	case *surrealmodels.RecordID:
		if id == nil {
			return "", fmt.Errorf("nil record ID")
		}
		return recordIDString(*id)
	}
	return "", fmt.Errorf("unexpected key type: %T", v)
}

func recordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected ID type: %T (expected string)", id.ID)
	}
	return s, nil
}

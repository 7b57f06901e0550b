package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/watchmarket/watchmarket/internal/model"
)

// Compute returns the fulfillment hash for a creation request: a SHA-256
// digest over {typeId, config, webhook, customerId} serialized canonically.
// encoding/json emits map keys in sorted order, so logically equal configs
// hash identically regardless of the key order the client sent.
func Compute(typeID string, config model.JSONMap, webhook, customerID string) (string, error) {
	payload := map[string]any{
		"typeId":     typeID,
		"config":     config,
		"webhook":    webhook,
		"customerId": customerID,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

package integration

import (
	"regexp"
	"strings"
)

// OrderKeyPrefix prefixes every idempotency key the connector creates
const OrderKeyPrefix = "IQR"

const (
	orderKeySeparator = "-"
	customFieldLabel  = "IQR Order ID: "
)

var customFieldPattern = regexp.MustCompile(`IQR Order ID: (.+)`)

// EncodeOrderKey builds the destination idempotency key for a source order ID.
func EncodeOrderKey(sourceOrderID string) string {
	return OrderKeyPrefix + orderKeySeparator + sourceOrderID
}

// DecodeOrderKey recovers the source order ID from an idempotency key.
// It returns false when the key was not produced by EncodeOrderKey.
func DecodeOrderKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(strings.TrimSpace(key), OrderKeyPrefix+orderKeySeparator)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// EncodeCustomField builds the custom field value that duplicates the idempotency key.
func EncodeCustomField(sourceOrderID string) string {
	return customFieldLabel + sourceOrderID
}

// DecodeCustomField recovers the source order ID from a custom field value.
func DecodeCustomField(value string) (string, bool) {
	m := customFieldPattern.FindStringSubmatch(value)
	if m == nil {
		return "", false
	}
	id := strings.TrimSpace(m[1])
	return id, id != ""
}

// ResolveSourceOrderID tries the custom field first, then the order key, then a
// prefixed order number. An empty result means the order is not ours.
func ResolveSourceOrderID(customField, orderKey, orderNumber string) (string, bool) {
	if id, ok := DecodeCustomField(customField); ok {
		return id, true
	}
	if id, ok := DecodeOrderKey(orderKey); ok {
		return id, true
	}
	return DecodeOrderKey(orderNumber)
}

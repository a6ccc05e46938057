package integration

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/erp/connector/internal/domain/integration"
)

// countryAliases maps full country names seen in the source ERP to ISO-3166 alpha-2
var countryAliases = map[string]string{
	"UNITED STATES":            "US",
	"UNITED STATES OF AMERICA": "US",
	"USA":                      "US",
	"CANADA":                   "CA",
	"MEXICO":                   "MX",
	"UNITED KINGDOM":           "GB",
	"UK":                       "GB",
	"GREAT BRITAIN":            "GB",
}

// OrderTransformer maps normalized source orders onto destination orders
type OrderTransformer struct {
	defaultCountry string
	logger         *zap.Logger
}

// NewOrderTransformer creates a transformer. Unrecognized countries fall back to defaultCountry.
func NewOrderTransformer(defaultCountry string, logger *zap.Logger) *OrderTransformer {
	defaultCountry = strings.ToUpper(strings.TrimSpace(defaultCountry))
	if defaultCountry == "" {
		defaultCountry = integration.DefaultCountryCode
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderTransformer{defaultCountry: defaultCountry, logger: logger}
}

// NormalizeCountry returns the ISO alpha-2 code for a country value.
// Two-letter values pass through uppercased. Anything unrecognized yields the
// default country and false: shippability is preferred over rejecting the order.
func (t *OrderTransformer) NormalizeCountry(country string) (string, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(foldAccents(country)))
	if normalized == "" {
		return t.defaultCountry, false
	}
	if isAlpha2(normalized) {
		return normalized, true
	}
	if code, ok := countryAliases[normalized]; ok {
		return code, true
	}
	return t.defaultCountry, false
}

// isAlpha2 reports whether s is exactly two ASCII letters
func isAlpha2(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// Transform maps one source order onto a destination order awaiting shipment
func (t *OrderTransformer) Transform(order integration.SourceOrder, storeID *int64) *integration.DestinationOrder {
	country, ok := t.NormalizeCountry(order.ShippingAddress.Country)
	if !ok && strings.TrimSpace(order.ShippingAddress.Country) != "" {
		t.logger.Warn("Unrecognized country, using default",
			zap.String("order_number", order.OrderNumber),
			zap.String("country", order.ShippingAddress.Country),
			zap.String("default", t.defaultCountry),
		)
	}

	address := integration.DestinationAddress{
		Name:       order.CustomerName,
		Street1:    order.ShippingAddress.Street1,
		Street2:    order.ShippingAddress.Street2,
		City:       order.ShippingAddress.City,
		State:      order.ShippingAddress.State,
		PostalCode: order.ShippingAddress.PostalCode,
		Country:    country,
	}

	items := make([]integration.DestinationItem, 0, len(order.LineItems))
	for _, line := range order.LineItems {
		item := integration.DestinationItem{
			SKU:       line.SKU,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		}
		if line.Weight != nil {
			item.Weight = &integration.Weight{Value: *line.Weight, Units: integration.WeightUnitPounds}
		}
		items = append(items, item)
	}

	var store *int64
	if storeID != nil {
		id := *storeID
		store = &id
	}

	return &integration.DestinationOrder{
		OrderNumber:   order.OrderNumber,
		OrderKey:      integration.EncodeOrderKey(order.OrderID),
		OrderDate:     order.OrderDate,
		OrderStatus:   integration.DestinationOrderStatusAwaitingShipment,
		CustomerEmail: order.CustomerEmail,
		BillTo:        address,
		ShipTo:        address,
		Items:         items,
		AdvancedOptions: integration.AdvancedOptions{
			StoreID:      store,
			CustomField1: integration.EncodeCustomField(order.OrderID),
		},
	}
}

// foldAccents strips combining marks so "México" compares equal to "MEXICO"
func foldAccents(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		return s
	}
	return folded
}

package integration

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCountryCode is the home country used when no default is configured
const DefaultCountryCode = "US"

// UserDefinedFieldCount is the number of free-form fields on a source order
const UserDefinedFieldCount = 5

// ---------------------------------------------------------------------------
// RawSourceOrder is the ERP's native sales order
// ---------------------------------------------------------------------------

// RawSourceOrder mirrors a sales order as returned by the source ERP listing.
// It is immutable once fetched and travels with its normalized form.
type RawSourceOrder struct {
	// SONumber is the ERP's numeric sales order identifier
	SONumber int64
	// Status is the ERP status string (e.g. "Open", "Partial", "Closed")
	Status string
	// ClientID is the ERP customer code
	ClientID       string
	ShipToCompany  string
	ShipToAddress1 string
	ShipToAddress2 string
	ShipToAddress3 string
	ShipToCity     string
	ShipToState    string
	ShipToPostal   string
	ShipToCountry  string
	ShipToEmail    string
	ShipToContact  string
	ShipToPhone    string
	// SaleDate is the sale date exactly as the ERP formats it
	SaleDate string
	// Total is the order total
	Total decimal.Decimal
	// Details are the order lines
	Details []RawSourceOrderLine
	// UserDefined holds userdefined1..userdefined5, used as an ad-hoc channel tag
	UserDefined [UserDefinedFieldCount]string
}

// RawSourceOrderLine is a single sales order line
type RawSourceOrderLine struct {
	Item         string
	Description  string
	Quantity     int
	UnitPrice    decimal.Decimal
	SerialNumber string
	Manufacturer string
	Condition    string
}

// ---------------------------------------------------------------------------
// SourceOrder is the normalized order derived from RawSourceOrder
// ---------------------------------------------------------------------------

// SourceOrder is the normalized form of a RawSourceOrder. It has no identity of
// its own and is always derived with NormalizeSourceOrder.
type SourceOrder struct {
	OrderID         string
	OrderNumber     string
	OrderDate       string
	CustomerName    string
	CustomerEmail   string
	ShippingAddress Address
	LineItems       []LineItem
	Status          string
	// Raw is the order as fetched, kept for channel matching and traceability
	Raw RawSourceOrder
}

// Address is a postal address on a normalized order
type Address struct {
	Street1    string
	Street2    string
	City       string
	State      string
	PostalCode string
	Country    string
}

// LineItem is a normalized order line
type LineItem struct {
	SKU       string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	// Weight in pounds; nil when the source does not know it
	Weight *decimal.Decimal
}

// NormalizeSourceOrder derives a SourceOrder from the ERP's native shape.
func NormalizeSourceOrder(raw RawSourceOrder) SourceOrder {
	id := strconv.FormatInt(raw.SONumber, 10)

	customer := raw.ShipToCompany
	if customer == "" {
		customer = raw.ClientID
	}
	street2 := raw.ShipToAddress2
	if street2 == "" {
		street2 = raw.ShipToAddress3
	}
	country := strings.TrimSpace(raw.ShipToCountry)

	items := make([]LineItem, 0, len(raw.Details))
	for _, d := range raw.Details {
		name := strings.TrimSpace(d.Description)
		if name == "" {
			name = d.Item
		}
		items = append(items, LineItem{
			SKU:       d.Item,
			Name:      name,
			Quantity:  d.Quantity,
			UnitPrice: d.UnitPrice,
		})
	}

	return SourceOrder{
		OrderID:       id,
		OrderNumber:   id,
		OrderDate:     raw.SaleDate,
		CustomerName:  customer,
		CustomerEmail: raw.ShipToEmail,
		ShippingAddress: Address{
			Street1:    raw.ShipToAddress1,
			Street2:    street2,
			City:       raw.ShipToCity,
			State:      raw.ShipToState,
			PostalCode: raw.ShipToPostal,
			Country:    country,
		},
		LineItems: items,
		Status:    strings.TrimSpace(raw.Status),
		Raw:       raw,
	}
}

// orderDateLayouts are the sale date formats observed from the ERP, most specific first.
var orderDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"01/02/2006",
	"1/2/2006",
}

// ParseOrderDate parses a sale date in any of the ERP's formats.
// Zone-less values are read as UTC.
func ParseOrderDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range orderDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParsedOrderDate returns the parsed sale date of the order
func (o SourceOrder) ParsedOrderDate() (time.Time, bool) {
	return ParseOrderDate(o.OrderDate)
}

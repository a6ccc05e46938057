package integration

import (
	"strings"

	"github.com/shopspring/decimal"
)

// WeightUnitPounds is the only weight unit the connector emits
const WeightUnitPounds = "pounds"

// DestinationOrder is an order as the fulfillment platform represents it.
// OrderKey carries the idempotency key; AdvancedOptions.CustomField1 carries it
// again because the platform does not always echo OrderKey back verbatim.
type DestinationOrder struct {
	// OrderID is assigned by the platform; zero before creation
	OrderID         int64
	OrderNumber     string
	OrderKey        string
	OrderDate       string
	OrderStatus     DestinationOrderStatus
	CustomerEmail   string
	BillTo          DestinationAddress
	ShipTo          DestinationAddress
	Items           []DestinationItem
	AdvancedOptions AdvancedOptions
}

// DestinationAddress is a bill-to or ship-to address on the fulfillment platform
type DestinationAddress struct {
	Name       string
	Company    string
	Street1    string
	Street2    string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// DestinationItem is an order line on the fulfillment platform
type DestinationItem struct {
	SKU       string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Weight    *Weight
}

// Weight is an item weight with its unit
type Weight struct {
	Value decimal.Decimal
	Units string
}

// AdvancedOptions holds the store routing and the duplicated idempotency key
type AdvancedOptions struct {
	// StoreID is nil when no store could be resolved
	StoreID      *int64
	CustomField1 string
}

// CreatedOrder is the platform's acknowledgement of a created or updated order
type CreatedOrder struct {
	OrderID     int64
	OrderNumber string
	OrderKey    string
}

// Store is a selling channel configured on the fulfillment platform
type Store struct {
	StoreID         int64
	StoreName       string
	MarketplaceName string
	Active          bool
}

// FindStoreByName returns the store whose name matches, ignoring case and
// surrounding spaces. ErrStoreNotFound when none does.
func FindStoreByName(stores []Store, name string) (*Store, error) {
	want := strings.TrimSpace(name)
	for i := range stores {
		if strings.EqualFold(strings.TrimSpace(stores[i].StoreName), want) {
			return &stores[i], nil
		}
	}
	return nil, ErrStoreNotFound
}

// Shipment is a label created on the fulfillment platform
type Shipment struct {
	ShipmentID     int64
	OrderID        int64
	OrderNumber    string
	OrderKey       string
	CreateDate     string
	ShipDate       string
	TrackingNumber string
	CarrierCode    string
	ServiceCode    string
	ShipmentCost   decimal.Decimal
}

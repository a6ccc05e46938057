package ecommerce

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/erp/connector/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Order Types
// ---------------------------------------------------------------------------

// ShipStationOrder is the order body of /orders/createorder and GET /orders/{id}
type ShipStationOrder struct {
	OrderID         int64                       `json:"orderId,omitempty"`
	OrderNumber     string                      `json:"orderNumber"`
	OrderKey        string                      `json:"orderKey,omitempty"`
	OrderDate       string                      `json:"orderDate"`
	OrderStatus     string                      `json:"orderStatus"`
	CustomerEmail   string                      `json:"customerEmail,omitempty"`
	BillTo          ShipStationAddress          `json:"billTo"`
	ShipTo          ShipStationAddress          `json:"shipTo"`
	Items           []ShipStationOrderItem      `json:"items"`
	AdvancedOptions *ShipStationAdvancedOptions `json:"advancedOptions,omitempty"`
}

// ShipStationAddress is a ShipStation bill-to or ship-to address
type ShipStationAddress struct {
	Name       string `json:"name"`
	Company    string `json:"company,omitempty"`
	Street1    string `json:"street1"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// ShipStationOrderItem is an order line. Prices travel as bare JSON numbers.
type ShipStationOrderItem struct {
	SKU       string             `json:"sku"`
	Name      string             `json:"name"`
	Quantity  int                `json:"quantity"`
	UnitPrice json.Number        `json:"unitPrice"`
	Weight    *ShipStationWeight `json:"weight,omitempty"`
}

// ShipStationWeight is an item weight
type ShipStationWeight struct {
	Value json.Number `json:"value"`
	Units string      `json:"units"`
}

// ShipStationAdvancedOptions carries store routing and custom fields
type ShipStationAdvancedOptions struct {
	StoreID      *int64 `json:"storeId,omitempty"`
	CustomField1 string `json:"customField1,omitempty"`
}

// ShipStationCreateOrderResponse is the reply of /orders/createorder
type ShipStationCreateOrderResponse struct {
	OrderID     int64  `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	OrderKey    string `json:"orderKey"`
}

// ShipStationCreateOrdersResponse is the reply of /orders/createorders
type ShipStationCreateOrdersResponse struct {
	HasErrors bool                           `json:"hasErrors"`
	Results   []ShipStationCreateOrderResult `json:"results"`
}

// ShipStationCreateOrderResult is one entry of a bulk create reply
type ShipStationCreateOrderResult struct {
	OrderID      int64  `json:"orderId"`
	OrderNumber  string `json:"orderNumber"`
	OrderKey     string `json:"orderKey"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage"`
}

// ---------------------------------------------------------------------------
// Shipment and Store Types
// ---------------------------------------------------------------------------

// ShipStationShipment is one entry of GET /shipments
type ShipStationShipment struct {
	ShipmentID     int64           `json:"shipmentId"`
	OrderID        int64           `json:"orderId"`
	OrderNumber    string          `json:"orderNumber"`
	OrderKey       string          `json:"orderKey"`
	CreateDate     string          `json:"createDate"`
	ShipDate       string          `json:"shipDate"`
	TrackingNumber string          `json:"trackingNumber"`
	CarrierCode    string          `json:"carrierCode"`
	ServiceCode    string          `json:"serviceCode"`
	ShipmentCost   decimal.Decimal `json:"shipmentCost"`
}

// ShipStationShipmentsResponse is a page of GET /shipments
type ShipStationShipmentsResponse struct {
	Shipments []ShipStationShipment `json:"shipments"`
	Total     int                   `json:"total"`
	Page      int                   `json:"page"`
	Pages     int                   `json:"pages"`
}

// ShipStationStore is one entry of GET /stores
type ShipStationStore struct {
	StoreID         int64  `json:"storeId"`
	StoreName       string `json:"storeName"`
	MarketplaceName string `json:"marketplaceName"`
	Active          bool   `json:"active"`
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func toShipStationAddress(a integration.DestinationAddress) ShipStationAddress {
	return ShipStationAddress{
		Name:       a.Name,
		Company:    a.Company,
		Street1:    a.Street1,
		Street2:    a.Street2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

func (a ShipStationAddress) toDomain() integration.DestinationAddress {
	return integration.DestinationAddress{
		Name:       a.Name,
		Company:    a.Company,
		Street1:    a.Street1,
		Street2:    a.Street2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

func toShipStationOrder(o *integration.DestinationOrder) ShipStationOrder {
	items := make([]ShipStationOrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		line := ShipStationOrderItem{
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: json.Number(item.UnitPrice.String()),
		}
		if item.Weight != nil {
			line.Weight = &ShipStationWeight{
				Value: json.Number(item.Weight.Value.String()),
				Units: item.Weight.Units,
			}
		}
		items = append(items, line)
	}

	order := ShipStationOrder{
		OrderID:       o.OrderID,
		OrderNumber:   o.OrderNumber,
		OrderKey:      o.OrderKey,
		OrderDate:     o.OrderDate,
		OrderStatus:   o.OrderStatus.String(),
		CustomerEmail: o.CustomerEmail,
		BillTo:        toShipStationAddress(o.BillTo),
		ShipTo:        toShipStationAddress(o.ShipTo),
		Items:         items,
	}
	if o.AdvancedOptions.StoreID != nil || o.AdvancedOptions.CustomField1 != "" {
		order.AdvancedOptions = &ShipStationAdvancedOptions{
			StoreID:      o.AdvancedOptions.StoreID,
			CustomField1: o.AdvancedOptions.CustomField1,
		}
	}
	return order
}

func (o ShipStationOrder) toDomain() *integration.DestinationOrder {
	items := make([]integration.DestinationItem, 0, len(o.Items))
	for _, item := range o.Items {
		line := integration.DestinationItem{
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: decimalFromNumber(item.UnitPrice),
		}
		if item.Weight != nil {
			line.Weight = &integration.Weight{
				Value: decimalFromNumber(item.Weight.Value),
				Units: item.Weight.Units,
			}
		}
		items = append(items, line)
	}

	order := &integration.DestinationOrder{
		OrderID:       o.OrderID,
		OrderNumber:   o.OrderNumber,
		OrderKey:      o.OrderKey,
		OrderDate:     o.OrderDate,
		OrderStatus:   integration.DestinationOrderStatus(o.OrderStatus),
		CustomerEmail: o.CustomerEmail,
		BillTo:        o.BillTo.toDomain(),
		ShipTo:        o.ShipTo.toDomain(),
		Items:         items,
	}
	if o.AdvancedOptions != nil {
		order.AdvancedOptions = integration.AdvancedOptions{
			StoreID:      o.AdvancedOptions.StoreID,
			CustomField1: o.AdvancedOptions.CustomField1,
		}
	}
	return order
}

func (s ShipStationShipment) toDomain() integration.Shipment {
	return integration.Shipment{
		ShipmentID:     s.ShipmentID,
		OrderID:        s.OrderID,
		OrderNumber:    s.OrderNumber,
		OrderKey:       s.OrderKey,
		CreateDate:     s.CreateDate,
		ShipDate:       s.ShipDate,
		TrackingNumber: s.TrackingNumber,
		CarrierCode:    s.CarrierCode,
		ServiceCode:    s.ServiceCode,
		ShipmentCost:   s.ShipmentCost,
	}
}

func (s ShipStationStore) toDomain() integration.Store {
	return integration.Store{
		StoreID:         s.StoreID,
		StoreName:       s.StoreName,
		MarketplaceName: s.MarketplaceName,
		Active:          s.Active,
	}
}

func decimalFromNumber(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

package ecommerce

import (
	"github.com/shopspring/decimal"

	"github.com/erp/connector/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Session Types
// ---------------------------------------------------------------------------

// IQRSessionRequest is the body of the session create call
type IQRSessionRequest struct {
	APIToken string `json:"APIToken"`
}

// IQRSessionResponse carries the issued session token
type IQRSessionResponse struct {
	Data string `json:"Data"`
}

// ---------------------------------------------------------------------------
// Sales Order Types
// ---------------------------------------------------------------------------

// IQRSalesOrder is a sales order from GET /webapi.svc/SO/JSON/GetSOs
type IQRSalesOrder struct {
	SO               int64               `json:"so"`
	Status           string              `json:"status"`
	ClientID         string              `json:"clientid"`
	ShipToCompany    string              `json:"shiptocompany"`
	ShipToAddress1   string              `json:"shiptoaddress1"`
	ShipToAddress2   string              `json:"shiptoaddress2,omitempty"`
	ShipToAddress3   string              `json:"shiptoaddress3,omitempty"`
	ShipToCity       string              `json:"shiptocity"`
	ShipToState      string              `json:"shiptostate"`
	ShipToPostalCode string              `json:"shiptopostalcode"`
	ShipToCountry    string              `json:"shiptocountry"`
	ShipToEmail      string              `json:"shiptoemail,omitempty"`
	ShipToContact    string              `json:"shiptocontact,omitempty"`
	ShipToPhone      string              `json:"shiptophone,omitempty"`
	SaleDate         string              `json:"saledate"`
	Total            decimal.Decimal     `json:"total"`
	SODetails        []IQRSalesOrderLine `json:"SODetails"`
	UserDefined1     string              `json:"userdefined1,omitempty"`
	UserDefined2     string              `json:"userdefined2,omitempty"`
	UserDefined3     string              `json:"userdefined3,omitempty"`
	UserDefined4     string              `json:"userdefined4,omitempty"`
	UserDefined5     string              `json:"userdefined5,omitempty"`
}

// IQRSalesOrderLine is one SODetails entry
type IQRSalesOrderLine struct {
	Item         string          `json:"item"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitprice"`
	SerialNumber string          `json:"serialnumber,omitempty"`
	Mfgr         string          `json:"mfgr,omitempty"`
	Condition    string          `json:"condition,omitempty"`
}

// toRawSourceOrder converts the wire shape into the domain's raw order
func (o IQRSalesOrder) toRawSourceOrder() integration.RawSourceOrder {
	details := make([]integration.RawSourceOrderLine, 0, len(o.SODetails))
	for _, d := range o.SODetails {
		details = append(details, integration.RawSourceOrderLine{
			Item:         d.Item,
			Description:  d.Description,
			Quantity:     int(d.Quantity.IntPart()),
			UnitPrice:    d.UnitPrice,
			SerialNumber: d.SerialNumber,
			Manufacturer: d.Mfgr,
			Condition:    d.Condition,
		})
	}

	return integration.RawSourceOrder{
		SONumber:       o.SO,
		Status:         o.Status,
		ClientID:       o.ClientID,
		ShipToCompany:  o.ShipToCompany,
		ShipToAddress1: o.ShipToAddress1,
		ShipToAddress2: o.ShipToAddress2,
		ShipToAddress3: o.ShipToAddress3,
		ShipToCity:     o.ShipToCity,
		ShipToState:    o.ShipToState,
		ShipToPostal:   o.ShipToPostalCode,
		ShipToCountry:  o.ShipToCountry,
		ShipToEmail:    o.ShipToEmail,
		ShipToContact:  o.ShipToContact,
		ShipToPhone:    o.ShipToPhone,
		SaleDate:       o.SaleDate,
		Total:          o.Total,
		Details:        details,
		UserDefined: [integration.UserDefinedFieldCount]string{
			o.UserDefined1, o.UserDefined2, o.UserDefined3, o.UserDefined4, o.UserDefined5,
		},
	}
}

// ---------------------------------------------------------------------------
// Tracking Update Types
// ---------------------------------------------------------------------------

// IQRTrackingRequest is the body of POST /webapi.svc/SO/UDFS/JSON
type IQRTrackingRequest struct {
	SOs []IQRTrackingFields `json:"sos"`
}

// IQRTrackingFields maps tracking data onto a sales order's user-defined fields
type IQRTrackingFields struct {
	SOID string `json:"soid"`
	// UserDefined1 holds the tracking number
	UserDefined1 string `json:"userdefined1"`
	// UserDefined2 holds the carrier code
	UserDefined2 string `json:"userdefined2"`
	// UserDefined3 holds the shipping method, omitted when unknown
	UserDefined3 string `json:"userdefined3,omitempty"`
	// UserDefined4 holds the ship date
	UserDefined4 string `json:"userdefined4"`
}

func newIQRTrackingRequest(u integration.TrackingUpdate) IQRTrackingRequest {
	return IQRTrackingRequest{
		SOs: []IQRTrackingFields{{
			SOID:         u.OrderID,
			UserDefined1: u.TrackingNumber,
			UserDefined2: u.Carrier,
			UserDefined3: u.ShippingMethod,
			UserDefined4: u.ShipDate,
		}},
	}
}

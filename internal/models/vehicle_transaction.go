package models

// VehicleTransaction is the slice of a vehicle purchase/sale record that the
// scheduler reads when building report payloads. The scheduler never writes
// these; they are owned by the surrounding application.
type VehicleTransaction struct {
	ID               string `json:"id"`
	VIN              string `json:"vin"`
	ObtainDate       string `json:"obtain_date"` // YYYY-MM-DD
	CounterpartyName string `json:"counterparty_name"`
	BuyerName        string `json:"buyer_name,omitempty"`
	Odometer         int    `json:"odometer,omitempty"`
}

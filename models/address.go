package models

type Address struct {
	ID                string `json:"id"`
	UserID            string `json:"userId"`
	Country           string `json:"country"`
	CountryCode       string `json:"countryCode"`
	State             string `json:"state"`
	City              string `json:"city"`
	PostalCode        string `json:"postalCode"`
	Address           string `json:"address"`
	AdditionalAddress string `json:"additionalAddress,omitempty"`
	Default           bool   `json:"default"`
}

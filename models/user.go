package models

type Preferences struct {
	Locale   string `json:"locale"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
}

// User is the authenticated caller as seen by checkout.
type User struct {
	ID          string      `json:"id"`
	StripeID    string      `json:"stripeId"`
	Email       string      `json:"email"`
	Preferences Preferences `json:"preferences"`
}

// Currency returns the preferred settlement currency, USD when unset.
func (u User) Currency() string {
	if u.Preferences.Currency == "" {
		return "USD"
	}
	return u.Preferences.Currency
}

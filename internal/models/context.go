package models

// BankDetails are the account details shown in payment emails.
type BankDetails struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	SortCode      string `json:"sort_code"`
}

// EmailContext is the bag of values available to template substitution for
// one send. It is assembled per recipient and never persisted.
type EmailContext struct {
	Profile        Profile
	ConfirmedTotal float64
	Remaining      float64

	Payment  *Payment
	Deadline *Deadline
	DaysAway int

	EventName    string
	Bank         BankDetails
	DashboardURL string
	SignupLink   string
}

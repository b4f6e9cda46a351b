package model

type DatasetSummary struct {
	TotalTransactions int     `json:"total_transactions"`
	FraudCases        int     `json:"fraud_cases"`
	FraudPercentage   float64 `json:"fraud_percentage"`
	Display           Display `json:"display"`
}

// Display holds the human formatted counterparts used by the dashboard.
type Display struct {
	TotalTransactions string `json:"total_transactions"`
	FraudCases        string `json:"fraud_cases"`
	FraudPercentage   string `json:"fraud_percentage"`
}

type EcommerceSummary struct {
	DatasetSummary

	Resolved       int            `json:"resolved"`
	Unresolved     int            `json:"unresolved"`
	FraudByCountry map[string]int `json:"fraud_by_country"`
}

type Summary struct {
	Ecommerce  *EcommerceSummary `json:"ecommerce,omitempty"`
	CreditCard *DatasetSummary   `json:"creditcard,omitempty"`
}

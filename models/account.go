package models

type Account struct {
	AccountId     int           `json:"account_id"`
	CustomerId    int           `json:"customer_id"`
	AccountNumber string        `json:"account_number"`
	AccountType   AccountType   `json:"account_type"`
	Balance       float64       `json:"balance"`
	OpenDate      Date          `json:"open_date"`
	Status        AccountStatus `json:"status"`
}

var AccountHeadings = []string{"account_id", "customer_id", "account_number", "account_type", "balance", "open_date", "status"}

func (a Account) GetCellValues() []interface{} {
	return []interface{}{a.AccountId, a.CustomerId, a.AccountNumber, string(a.AccountType), a.Balance, a.OpenDate.String(), string(a.Status)}
}

package models

const (
	DefaultAPINumCustomers           = 1000
	DefaultAPITransactionsPerAccount = 50
)

// GenerateDataRequest is the POST /generate_data body. Absent fields take the API defaults.
type GenerateDataRequest struct {
	NumCustomers           *int     `json:"num_customers,omitempty" binding:"omitempty,gte=0,lte=100000"`
	TransactionsPerAccount *int     `json:"transactions_per_account,omitempty" binding:"omitempty,gte=0,lte=1000"`
	LoanProbability        *float64 `json:"loan_probability,omitempty" binding:"omitempty,gte=0,lte=1"`
	Seed                   *int64   `json:"seed,omitempty"`
	BalanceMode            string   `json:"balance_mode,omitempty" binding:"omitempty,oneof=ledger independent"`
}

// Options resolves the request against the API defaults.
func (r GenerateDataRequest) Options() GenerateOptions {
	opts := NewGenerateOptions(DefaultAPINumCustomers, DefaultAPITransactionsPerAccount)
	if r.NumCustomers != nil {
		opts.NumCustomers = *r.NumCustomers
	}
	if r.TransactionsPerAccount != nil {
		opts.TransactionsPerAccount = *r.TransactionsPerAccount
	}
	if r.LoanProbability != nil {
		opts.LoanProbability = *r.LoanProbability
	}
	if r.BalanceMode != "" {
		opts.BalanceMode = BalanceMode(r.BalanceMode)
	}
	opts.Seed = r.Seed
	return opts
}

type GenerateDataResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	DatasetCounts
	Data *Dataset `json:"data,omitempty"`
}

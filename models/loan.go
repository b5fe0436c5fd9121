package models

type Loan struct {
	LoanId       int        `json:"loan_id"`
	CustomerId   int        `json:"customer_id"`
	LoanType     LoanType   `json:"loan_type"`
	Principal    float64    `json:"principal"`
	InterestRate float64    `json:"interest_rate"`
	TermMonths   int        `json:"term_months"`
	IssueDate    Date       `json:"issue_date"`
	Status       LoanStatus `json:"status"`
}

var LoanHeadings = []string{"loan_id", "customer_id", "loan_type", "principal", "interest_rate", "term_months", "issue_date", "status"}

func (l Loan) GetCellValues() []interface{} {
	return []interface{}{l.LoanId, l.CustomerId, string(l.LoanType), l.Principal, l.InterestRate, l.TermMonths, l.IssueDate.String(), string(l.Status)}
}

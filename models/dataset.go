package models

import (
	"fmt"

	"github.com/mmdatafocus/banking_datagen/utils"
)

// Dataset is one generation run: four tables with cross references.
type Dataset struct {
	Customers    []Customer    `json:"customers"`
	Accounts     []Account     `json:"accounts"`
	Transactions []Transaction `json:"transactions"`
	Loans        []Loan        `json:"loans"`
}

type DatasetCounts struct {
	Customers    int `json:"customers_count"`
	Accounts     int `json:"accounts_count"`
	Transactions int `json:"transactions_count"`
	Loans        int `json:"loans_count"`
}

func (d *Dataset) Counts() DatasetCounts {
	if d == nil {
		return DatasetCounts{}
	}
	return DatasetCounts{
		Customers:    len(d.Customers),
		Accounts:     len(d.Accounts),
		Transactions: len(d.Transactions),
		Loans:        len(d.Loans),
	}
}

func (c DatasetCounts) Total() int {
	return c.Customers + c.Accounts + c.Transactions + c.Loans
}

// Rows returns the records of one table in dataset order.
func (d *Dataset) Rows(table string) ([]any, error) {
	if d == nil {
		return nil, nil
	}
	var out []any
	switch table {
	case TableCustomers:
		out = make([]any, 0, len(d.Customers))
		for _, r := range d.Customers {
			out = append(out, r)
		}
	case TableAccounts:
		out = make([]any, 0, len(d.Accounts))
		for _, r := range d.Accounts {
			out = append(out, r)
		}
	case TableTransactions:
		out = make([]any, 0, len(d.Transactions))
		for _, r := range d.Transactions {
			out = append(out, r)
		}
	case TableLoans:
		out = make([]any, 0, len(d.Loans))
		for _, r := range d.Loans {
			out = append(out, r)
		}
	default:
		return nil, fmt.Errorf("%w: unknown table %q", ErrInvalidArgument, table)
	}
	return out, nil
}

// Sheet returns the spreadsheet heading row and cell rows of one table.
func (d *Dataset) Sheet(table string) ([]string, [][]interface{}, error) {
	rows, err := d.Rows(table)
	if err != nil {
		return nil, nil, err
	}
	var headings []string
	switch table {
	case TableCustomers:
		headings = CustomerHeadings
	case TableAccounts:
		headings = AccountHeadings
	case TableTransactions:
		headings = TransactionHeadings
	case TableLoans:
		headings = LoanHeadings
	}
	cells := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, r.(interface{ GetCellValues() []interface{} }).GetCellValues())
	}
	return headings, cells, nil
}

// Workbook renders the dataset as an XLSX file with one sheet per table.
func (d *Dataset) Workbook() ([]byte, error) {
	sheets := make([]utils.Sheet, 0, len(Tables))
	for _, table := range Tables {
		headings, rows, err := d.Sheet(table)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, utils.Sheet{Name: table, Headings: headings, Rows: rows})
	}
	return utils.WriteWorkbook(sheets)
}

// CheckIntegrity reports the first dangling reference or date violation.
// Datasets fetched over HTTP are not trusted to be coherent.
func (d *Dataset) CheckIntegrity() error {
	if d == nil {
		return nil
	}
	customers := make(map[int]struct{}, len(d.Customers))
	for _, c := range d.Customers {
		customers[c.CustomerId] = struct{}{}
	}
	accounts := make(map[int]Account, len(d.Accounts))
	for _, a := range d.Accounts {
		if _, ok := customers[a.CustomerId]; !ok {
			return fmt.Errorf("account %d references unknown customer %d", a.AccountId, a.CustomerId)
		}
		accounts[a.AccountId] = a
	}
	for i, t := range d.Transactions {
		a, ok := accounts[t.AccountId]
		if !ok {
			return fmt.Errorf("transaction %d references unknown account %d", t.TransactionId, t.AccountId)
		}
		if t.TransactionDate.Before(a.OpenDate.Time()) {
			return fmt.Errorf("transaction %d predates account %d open_date %s", t.TransactionId, a.AccountId, a.OpenDate)
		}
		if i > 0 && t.TransactionDate.Before(d.Transactions[i-1].TransactionDate) {
			return fmt.Errorf("transactions not sorted by date at index %d", i)
		}
	}
	for _, l := range d.Loans {
		if _, ok := customers[l.CustomerId]; !ok {
			return fmt.Errorf("loan %d references unknown customer %d", l.LoanId, l.CustomerId)
		}
	}
	return nil
}

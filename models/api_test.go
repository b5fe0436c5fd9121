package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestGenerateDataRequestDefaults(t *testing.T) {
	var req GenerateDataRequest
	if err := json.Unmarshal([]byte(`{}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	opts := req.Options()
	if opts.NumCustomers != 1000 || opts.TransactionsPerAccount != 50 || opts.LoanProbability != DefaultLoanProbability {
		t.Fatalf("defaults = %+v", opts)
	}
	if opts.Seed != nil || opts.BalanceMode != BalanceModeLedger {
		t.Fatalf("defaults = %+v", opts)
	}

	if err := json.Unmarshal([]byte(`{"num_customers":0,"transactions_per_account":3,"seed":42,"balance_mode":"independent"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	opts = req.Options()
	if opts.NumCustomers != 0 || opts.TransactionsPerAccount != 3 || *opts.Seed != 42 || opts.BalanceMode != BalanceModeIndependent {
		t.Fatalf("explicit = %+v", opts)
	}
}

func TestGenerateDataResponseShape(t *testing.T) {
	ds := &Dataset{Customers: []Customer{}, Accounts: []Account{}, Transactions: []Transaction{}, Loans: []Loan{}}
	raw, err := json.Marshal(GenerateDataResponse{Success: true, Message: "Data generated successfully", DatasetCounts: ds.Counts(), Data: ds})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"success":true,"message":"Data generated successfully","customers_count":0,"accounts_count":0,"transactions_count":0,"loans_count":0,"data":{"customers":[],"accounts":[],"transactions":[],"loans":[]}}`
	if string(raw) != want {
		t.Fatalf("response = %s", raw)
	}
}

func TestTransactionDateLayouts(t *testing.T) {
	want := time.Date(2024, time.June, 15, 8, 30, 0, 0, time.UTC)
	for _, raw := range []string{
		`"2024-06-15T08:30:00Z"`,
		`"2024-06-15T10:30:00+02:00"`,
		`"2024-06-15 08:30:00"`,
		`"2024-06-15T08:30:00"`,
		`"Sat, 15 Jun 2024 08:30:00 GMT"`,
		`1718440200000`,
	} {
		var tx Transaction
		if err := json.Unmarshal([]byte(`{"transaction_id":3,"transaction_date":`+raw+`,"amount":-12.5}`), &tx); err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if !tx.TransactionDate.Equal(want) || tx.TransactionId != 3 || tx.Amount != -12.5 {
			t.Fatalf("%s: decoded %+v", raw, tx)
		}
	}

	var tx Transaction
	if err := json.Unmarshal([]byte(`{"transaction_id":3,"transaction_date":"15/06/2024"}`), &tx); err == nil {
		t.Fatalf("expected an error for an unknown layout")
	}
}

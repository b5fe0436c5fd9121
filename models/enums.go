package models

import (
	"errors"
	"fmt"
	"strings"
)

type AccountType string

const (
	AccountTypeChecking AccountType = "Checking"
	AccountTypeSavings  AccountType = "Savings"
	AccountTypeCredit   AccountType = "Credit"
)

var AccountTypes = []AccountType{AccountTypeChecking, AccountTypeSavings, AccountTypeCredit}

type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "Active"
	AccountStatusDormant AccountStatus = "Dormant"
)

// drawn uniformly, so Active comes out 75% of the time
var accountStatusWeights = []AccountStatus{AccountStatusActive, AccountStatusActive, AccountStatusActive, AccountStatusDormant}

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "Deposit"
	TransactionTypeWithdrawal TransactionType = "Withdrawal"
	TransactionTypeTransfer   TransactionType = "Transfer"
	TransactionTypePurchase   TransactionType = "Purchase"
	TransactionTypePayment    TransactionType = "Payment"
)

type TransactionCategory string

const (
	CategorySalaryDeposit  TransactionCategory = "Salary Deposit"
	CategoryGrocery        TransactionCategory = "Grocery"
	CategoryRent           TransactionCategory = "Rent"
	CategoryUtility        TransactionCategory = "Utility"
	CategoryTransfer       TransactionCategory = "Transfer"
	CategoryATMWithdrawal  TransactionCategory = "ATM Withdrawal"
	CategoryOnlinePurchase TransactionCategory = "Online Purchase"
	CategoryBillPayment    TransactionCategory = "Bill Payment"
)

var TransactionCategories = []TransactionCategory{
	CategorySalaryDeposit,
	CategoryGrocery,
	CategoryRent,
	CategoryUtility,
	CategoryTransfer,
	CategoryATMWithdrawal,
	CategoryOnlinePurchase,
	CategoryBillPayment,
}

type LoanType string

const (
	LoanTypePersonal LoanType = "Personal"
	LoanTypeMortgage LoanType = "Mortgage"
	LoanTypeAuto     LoanType = "Auto"
)

var LoanTypes = []LoanType{LoanTypePersonal, LoanTypeMortgage, LoanTypeAuto}

type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "Active"
	LoanStatusPaidOff   LoanStatus = "Paid Off"
	LoanStatusDefaulted LoanStatus = "Defaulted"
)

var loanStatusWeights = []LoanStatus{LoanStatusActive, LoanStatusActive, LoanStatusPaidOff, LoanStatusDefaulted}

var LoanTermsMonths = []int{12, 24, 36, 60, 120, 360}

// BalanceMode controls how Transaction.BalanceAfter is derived.
type BalanceMode string

const (
	// BalanceModeLedger keeps a running balance per account in date order.
	BalanceModeLedger BalanceMode = "ledger"
	// BalanceModeIndependent draws balance_after as opening balance ± 1000, unrelated to amount.
	BalanceModeIndependent BalanceMode = "independent"
)

func ParseBalanceMode(s string) (BalanceMode, error) {
	switch BalanceMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", BalanceModeLedger:
		return BalanceModeLedger, nil
	case BalanceModeIndependent:
		return BalanceModeIndependent, nil
	default:
		return "", fmt.Errorf("%w: unknown balance mode %q", ErrInvalidArgument, s)
	}
}

// Table names double as message labels and data_type filter values.
const (
	TableCustomers    = "customers"
	TableAccounts     = "accounts"
	TableTransactions = "transactions"
	TableLoans        = "loans"
)

var Tables = []string{TableCustomers, TableAccounts, TableTransactions, TableLoans}

func IsValidTable(name string) bool {
	for _, t := range Tables {
		if t == name {
			return true
		}
	}
	return false
}

var ErrInvalidArgument = errors.New("invalid argument")

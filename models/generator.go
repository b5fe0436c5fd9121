package models

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/mmdatafocus/banking_datagen/utils"
	"github.com/shopspring/decimal"
)

const DefaultLoanProbability = 0.1

const day = 24 * time.Hour

var (
	firstNames = []string{"John", "Jane", "Alice", "Bob", "Charlie", "Diana", "Eve", "Frank", "Grace", "Henry",
		"Ivy", "Jack", "Kara", "Leo", "Mia", "Noah", "Olivia", "Paul", "Quinn", "Riley"}
	lastNames = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez",
		"Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin"}
	streets = []string{"Main St", "Oak Ave", "Pine Rd", "Elm St", "Maple Dr", "Cedar Ln", "Birch Blvd", "Willow Way"}
	// cities and states are index aligned
	cities = []string{"New York", "Los Angeles", "Chicago", "Houston", "Phoenix", "Philadelphia", "San Antonio", "San Diego"}
	states = []string{"NY", "CA", "IL", "TX", "AZ", "PA", "TX", "CA"}

	zeroAmountTypes        = []TransactionType{TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransfer}
	creditTransactionTypes = []TransactionType{TransactionTypePurchase, TransactionTypePayment}
)

type GenerateOptions struct {
	NumCustomers           int
	TransactionsPerAccount int
	// LoanProbability is the per-customer chance of one loan, in [0,1].
	LoanProbability float64
	// Seed makes the run reproducible. Nil draws a fresh seed.
	Seed *int64
	// Now is the reference time. Zero means time.Now(). It is truncated to the UTC day.
	Now         time.Time
	BalanceMode BalanceMode
}

func NewGenerateOptions(numCustomers, transactionsPerAccount int) GenerateOptions {
	return GenerateOptions{
		NumCustomers:           numCustomers,
		TransactionsPerAccount: transactionsPerAccount,
		LoanProbability:        DefaultLoanProbability,
		BalanceMode:            BalanceModeLedger,
	}
}

func (o GenerateOptions) Validate() error {
	if o.NumCustomers < 0 {
		return fmt.Errorf("%w: num_customers must be >= 0, got %d", ErrInvalidArgument, o.NumCustomers)
	}
	if o.TransactionsPerAccount < 0 {
		return fmt.Errorf("%w: transactions_per_account must be >= 0, got %d", ErrInvalidArgument, o.TransactionsPerAccount)
	}
	if math.IsNaN(o.LoanProbability) || o.LoanProbability < 0 || o.LoanProbability > 1 {
		return fmt.Errorf("%w: loan_probability must be within [0,1], got %v", ErrInvalidArgument, o.LoanProbability)
	}
	if _, err := ParseBalanceMode(string(o.BalanceMode)); err != nil {
		return err
	}
	return nil
}

// GenerateDataset seeds one random source for the whole call and generates a dataset.
func GenerateDataset(opts GenerateOptions) (*Dataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	var seed int64
	if opts.Seed != nil {
		seed = *opts.Seed
	} else {
		seed = rand.Int63()
	}
	return NewGenerator(rand.NewSource(seed).(rand.Source64)).Generate(opts)
}

// Generator draws every field from a single random source. It is not safe for concurrent use.
type Generator struct {
	faker *gofakeit.Faker
	now   time.Time
}

func NewGenerator(src rand.Source64) *Generator {
	return &Generator{faker: gofakeit.NewCustom(src)}
}

func (g *Generator) Generate(opts GenerateOptions) (*Dataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	mode, _ := ParseBalanceMode(string(opts.BalanceMode))

	ref := opts.Now
	if ref.IsZero() {
		ref = time.Now()
	}
	g.now = NewDate(ref).Time()

	ds := &Dataset{
		Customers:    make([]Customer, 0, opts.NumCustomers),
		Accounts:     make([]Account, 0, opts.NumCustomers*2),
		Transactions: make([]Transaction, 0),
		Loans:        make([]Loan, 0),
	}

	for i := 1; i <= opts.NumCustomers; i++ {
		ds.Customers = append(ds.Customers, g.customer(i))
	}

	for _, c := range ds.Customers {
		n := g.faker.Number(1, 3)
		for j := 0; j < n; j++ {
			ds.Accounts = append(ds.Accounts, g.account(len(ds.Accounts)+1, c.CustomerId))
		}
	}

	ds.Transactions = make([]Transaction, 0, len(ds.Accounts)*opts.TransactionsPerAccount)
	for _, a := range ds.Accounts {
		for j := 0; j < opts.TransactionsPerAccount; j++ {
			ds.Transactions = append(ds.Transactions, g.transaction(len(ds.Transactions)+1, a, mode))
		}
	}
	sort.SliceStable(ds.Transactions, func(i, j int) bool {
		ti, tj := ds.Transactions[i], ds.Transactions[j]
		if ti.TransactionDate.Equal(tj.TransactionDate) {
			return ti.TransactionId < tj.TransactionId
		}
		return ti.TransactionDate.Before(tj.TransactionDate)
	})
	if mode == BalanceModeLedger {
		applyLedgerBalances(ds.Accounts, ds.Transactions)
	}

	for _, c := range ds.Customers {
		if g.faker.Rand.Float64() < opts.LoanProbability {
			ds.Loans = append(ds.Loans, g.loan(len(ds.Loans)+1, c.CustomerId))
		}
	}

	return ds, nil
}

func (g *Generator) customer(id int) Customer {
	f := g.faker
	cityIdx := f.Number(0, len(cities)-1)
	address := fmt.Sprintf("%d %s, %s, %s %d",
		f.Number(100, 9999),
		f.RandomString(streets),
		cities[cityIdx],
		states[cityIdx],
		f.Number(10000, 99999),
	)
	phone := fmt.Sprintf("%d%d%d", f.Number(200, 999), f.Number(200, 999), f.Number(1000, 9999))

	return Customer{
		CustomerId: id,
		Name:       f.RandomString(firstNames) + " " + f.RandomString(lastNames),
		Address:    address,
		Email:      strings.ToLower(f.LetterN(5)) + "@example.com",
		Phone:      utils.FormatNationalPhone(phone),
		DateJoined: g.daysAgo(365*5, 365*20),
	}
}

func (g *Generator) account(id, customerId int) Account {
	f := g.faker
	accountType := pick(f, AccountTypes)
	balance := 0.0
	if accountType != AccountTypeCredit {
		balance = roundCents(f.Rand.NormFloat64()*3000 + 5000)
		if balance < 0 {
			balance = 0
		}
	}
	return Account{
		AccountId:     id,
		CustomerId:    customerId,
		AccountNumber: f.Numerify("##########"),
		AccountType:   accountType,
		Balance:       balance,
		OpenDate:      g.daysAgo(365, 3650),
		Status:        pick(f, accountStatusWeights),
	}
}

func (g *Generator) transaction(id int, a Account, mode BalanceMode) Transaction {
	f := g.faker

	start := a.OpenDate.Time()
	span := int64(g.now.Sub(start) / time.Second)
	if span < 0 {
		span = 0
	}
	date := start.Add(time.Duration(f.Rand.Int63n(span+1)) * time.Second)

	var (
		amount    float64
		transType TransactionType
	)
	if a.AccountType == AccountTypeCredit {
		amount = roundCents(f.Float64Range(10, 500))
		transType = pick(f, creditTransactionTypes)
		if transType == TransactionTypePurchase {
			amount = -amount
		}
	} else {
		amount = roundCents(f.Float64Range(-200, 1000))
		switch {
		case amount > 0:
			transType = TransactionTypeDeposit
		case amount < 0:
			transType = TransactionTypeWithdrawal
		default:
			transType = pick(f, zeroAmountTypes)
			amount = roundCents(f.Float64Range(10, 100))
			if transType == TransactionTypeWithdrawal {
				amount = -amount
			}
		}
	}

	category := pick(f, TransactionCategories)
	t := Transaction{
		TransactionId:   id,
		AccountId:       a.AccountId,
		TransactionDate: date,
		TransactionType: transType,
		Amount:          amount,
		Description:     fmt.Sprintf("%s - %s", category, f.LetterN(5)),
		Category:        category,
	}
	if mode == BalanceModeIndependent {
		t.BalanceAfter = roundCents(a.Balance + f.Float64Range(-1000, 1000))
	}
	return t
}

func (g *Generator) loan(id, customerId int) Loan {
	f := g.faker
	return Loan{
		LoanId:       id,
		CustomerId:   customerId,
		LoanType:     pick(f, LoanTypes),
		Principal:    roundCents(f.Float64Range(5000, 200000)),
		InterestRate: roundCents(f.Float64Range(3.0, 15.0)),
		TermMonths:   pick(f, LoanTermsMonths),
		IssueDate:    g.daysAgo(365, 365*5),
		Status:       pick(f, loanStatusWeights),
	}
}

func (g *Generator) daysAgo(minDays, maxDays int) Date {
	return NewDate(g.now.Add(-time.Duration(g.faker.Number(minDays, maxDays)) * day))
}

// applyLedgerBalances expects txs sorted by date.
func applyLedgerBalances(accounts []Account, txs []Transaction) {
	running := make(map[int]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		running[a.AccountId] = decimal.NewFromFloat(a.Balance)
	}
	for i := range txs {
		bal := running[txs[i].AccountId].Add(decimal.NewFromFloat(txs[i].Amount))
		running[txs[i].AccountId] = bal
		txs[i].BalanceAfter = bal.Round(2).InexactFloat64()
	}
}

func pick[T any](f *gofakeit.Faker, items []T) T {
	return items[f.Number(0, len(items)-1)]
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

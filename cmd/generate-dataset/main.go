// generate-dataset writes a synthetic banking dataset to a JSON or XLSX file,
// and optionally uploads it to GCS.
//
// Usage:
//
//	go run ./cmd/generate-dataset --num_customers 500 --seed 42 --format xlsx --gcs_bucket my-bucket
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/banking_datagen/config"
	"github.com/mmdatafocus/banking_datagen/models"
	"github.com/mmdatafocus/banking_datagen/utils"
	"github.com/sirupsen/logrus"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code.
func run() int {
	numCustomers := flag.Int("num_customers", 100, "Number of customers to generate")
	transactionsPerAccount := flag.Int("transactions_per_account", 10, "Transactions per account")
	loanProbability := flag.Float64("loan_probability", config.FloatFromEnv("LOAN_PROBABILITY", models.DefaultLoanProbability), "Per-customer loan probability")
	seed := flag.String("seed", "", "Optional: seed for a reproducible dataset")
	balanceMode := flag.String("balance_mode", string(models.BalanceModeLedger), "ledger or independent")
	format := flag.String("format", "json", "Output format: json or xlsx")
	out := flag.String("out", "", "Output file (default banking_dataset.<format>)")
	gcsBucket := flag.String("gcs_bucket", config.Getenv("GCS_BUCKET", ""), "Optional: upload the file to this bucket")
	gcsPrefix := flag.String("gcs_prefix", "datasets", "Object prefix for uploads")
	flag.Parse()

	*format = strings.ToLower(strings.TrimSpace(*format))
	if *format != "json" && *format != "xlsx" {
		fmt.Fprintln(os.Stderr, "--format must be json or xlsx")
		return 1
	}
	if *out == "" {
		*out = "banking_dataset." + *format
	}

	mode, err := models.ParseBalanceMode(*balanceMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	opts := models.NewGenerateOptions(*numCustomers, *transactionsPerAccount)
	opts.LoanProbability = *loanProbability
	opts.BalanceMode = mode
	if s := strings.TrimSpace(*seed); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --seed: %v\n", err)
			return 1
		}
		opts.Seed = &v
	}

	logger := config.GetLogger()
	start := time.Now()
	ds, err := models.GenerateDataset(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		return 1
	}
	counts := ds.Counts()
	logger.WithFields(logrus.Fields{
		"field":        "generate-dataset",
		"customers":    counts.Customers,
		"accounts":     counts.Accounts,
		"transactions": counts.Transactions,
		"loans":        counts.Loans,
		"generate_ms":  time.Since(start).Milliseconds(),
	}).Info("dataset generated")

	var data []byte
	switch *format {
	case "xlsx":
		data, err = ds.Workbook()
	default:
		data, err = utils.MarshalIndented(ds)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode %s: %v\n", *format, err)
		return 1
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *out, err)
		return 1
	}
	fmt.Printf("Wrote %d customers, %d accounts, %d transactions, %d loans to %s\n",
		counts.Customers, counts.Accounts, counts.Transactions, counts.Loans, *out)

	if *gcsBucket == "" {
		return 0
	}
	object := filepath.ToSlash(filepath.Join(*gcsPrefix, time.Now().UTC().Format("2006-01-02"), filepath.Base(*out)))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	uri, err := utils.UploadBytesToGCS(ctx, *gcsBucket, object, data, utils.ContentTypeFor(*out))
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload: %v\n", err)
		return 1
	}
	fmt.Printf("Uploaded %s\n", uri)
	return 0
}

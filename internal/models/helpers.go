package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func GenerateRoundID() string {
	return fmt.Sprintf("round_%s_%s",
		time.Now().UTC().Format("20060102"),
		uuid.NewString())
}

func GenerateTransactionID() string {
	return fmt.Sprintf("tx_%s_%s",
		time.Now().UTC().Format("20060102"),
		uuid.NewString())
}

func GenerateRewardClaimID() string {
	return fmt.Sprintf("reward_%s_%s",
		time.Now().UTC().Format("20060102"),
		uuid.NewString())
}

// FormatCurrency renders cents as dollars, e.g. 1050 -> "$10.50".
func FormatCurrency(cents int64) string {
	return "$" + decimal.New(cents, -2).StringFixed(2)
}

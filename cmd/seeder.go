package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"

	appmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/application"
	paymodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/payment"
	repmodel "github.com/frahmantamala/loan-servicing/internal/core/datamodel/repayment"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with a small loan portfolio for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := gorm.Open(gormpg.New(gormpg.Config{Conn: sqlDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		if clearData {
			for _, table := range []string{
				"late_fee_records", "accrual_runs", "pending_payments",
				"disbursements", "loan_repayments", "application_history", "loan_applications",
			} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		seedPortfolio(db)
	},
}

func seedPortfolio(db *gorm.DB) {
	bankName := "Bank Mandiri"
	bankAccount := "1370012345678"

	// active loan with an overdue installment, exercises accrual and payments
	active := &appmodel.LoanApplication{
		Status:            appmodel.StatusActive,
		Amount:            decimal.NewFromInt(12000),
		TermMonths:        12,
		InterestRate:      decimal.NewFromFloat(0.12),
		NetDisbursement:   decimal.NewFromInt(11700),
		BorrowerName:      "Siti Rahma",
		BankName:          &bankName,
		BankAccountNumber: &bankAccount,
	}
	if err := db.Create(active).Error; err != nil {
		log.Fatalf("failed to seed active loan: %v", err)
	}

	now := time.Now()
	for i := 1; i <= 12; i++ {
		rep := &repmodel.LoanRepayment{
			LoanID:            active.ID,
			InstallmentNumber: i,
			DueDate:           now.AddDate(0, i-3, 0),
			PrincipalAmount:   decimal.NewFromInt(1000),
			InterestAmount:    decimal.NewFromInt(120),
			Status:            repmodel.StatusPending,
			DailyRate:         decimal.NewFromFloat(0.001),
			FeeType:           repmodel.FeeTypeInterest,
		}
		if i == 1 {
			paid := decimal.NewFromInt(1120)
			paidAt := now.AddDate(0, -2, 0)
			rep.Status = repmodel.StatusCompleted
			rep.ActualAmount = &paid
			rep.PrincipalPaid = paid
			rep.PaidAt = &paidAt
		}
		if i == 2 {
			rep.Status = repmodel.StatusOverdue
		}
		if err := db.Create(rep).Error; err != nil {
			log.Fatalf("failed to seed repayment %d: %v", i, err)
		}
	}

	payment := &paymodel.PendingPayment{
		LoanID:        active.ID,
		Amount:        decimal.NewFromInt(1120),
		Reference:     "TRX-SEED-0001",
		PayerName:     "Siti Rahma",
		PaymentMethod: "bank_transfer",
		Status:        paymodel.StatusPending,
	}
	if err := db.Create(payment).Error; err != nil {
		log.Fatalf("failed to seed pending payment: %v", err)
	}

	// awaiting payout, exercises disbursement
	disbursable := &appmodel.LoanApplication{
		Status:            appmodel.StatusPendingDisbursement,
		Amount:            decimal.NewFromInt(5000),
		TermMonths:        6,
		InterestRate:      decimal.NewFromFloat(0.10),
		NetDisbursement:   decimal.NewFromInt(4850),
		BorrowerName:      "Budi Santoso",
		BankName:          &bankName,
		BankAccountNumber: &bankAccount,
	}
	if err := db.Create(disbursable).Error; err != nil {
		log.Fatalf("failed to seed disbursable loan: %v", err)
	}

	// mid-origination, exercises the state machine
	pending := &appmodel.LoanApplication{
		Status:       appmodel.StatusPendingApproval,
		Amount:       decimal.NewFromInt(8000),
		TermMonths:   10,
		InterestRate: decimal.NewFromFloat(0.11),
		BorrowerName: "Dewi Lestari",
	}
	if err := db.Create(pending).Error; err != nil {
		log.Fatalf("failed to seed pending application: %v", err)
	}

	fmt.Printf("Seeded loans: active=%d disbursable=%d pending_approval=%d\n",
		active.ID, disbursable.ID, pending.ID)
}

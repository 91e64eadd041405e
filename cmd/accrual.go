package cmd

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/frahmantamala/loan-servicing/internal"
	"github.com/frahmantamala/loan-servicing/internal/accrual"
	accrualpg "github.com/frahmantamala/loan-servicing/internal/accrual/postgres"
	"github.com/frahmantamala/loan-servicing/internal/core/events"
	"github.com/frahmantamala/loan-servicing/pkg/logger"
)

var (
	accrualCmd = &cobra.Command{
		RunE:  runAccrual,
		Use:   "accrue",
		Short: "Run the late-fee accrual engine for one date",
		Long:  `Assess overdue fees for every open repayment as of the given date. Safe to re-run; a completed date is a no-op.`,
	}
	accrualDate string
)

func init() {
	accrualCmd.Flags().StringVar(&accrualDate, "date", "", "run date as YYYY-MM-DD (defaults to today)")
}

func runAccrual(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(".")
	if err != nil {
		log.Fatal(err)
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}
	defer db.Close()

	gormDB, err := gorm.Open(gormpg.New(gormpg.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to init orm: %v", err)
	}

	runDate := accrual.DateOnly(time.Now())
	if accrualDate != "" {
		parsed, err := time.Parse("2006-01-02", accrualDate)
		if err != nil {
			log.Fatalf("invalid --date %q, want YYYY-MM-DD", accrualDate)
		}
		runDate = parsed
	}

	lg := logger.LoggerWrapper()
	bus := events.NewEventBus(lg)
	events.NewAuditLogger(lg).RegisterEventHandlers(bus)
	service := accrual.NewService(accrualpg.NewAccrualRepository(gormDB), bus, cfg.Accrual.BatchSize, lg)

	summary, err := service.Run(context.Background(), runDate, internal.SystemActor)
	if err != nil {
		return err
	}

	lg.Info("accrual run finished",
		"run_date", summary.RunDate.Format("2006-01-02"),
		"already_processed", summary.AlreadyProcessed,
		"repayments_seen", summary.RepaymentsSeen,
		"fees_assessed", summary.FeesAssessed,
		"repayments_closed", summary.RepaymentsClosed,
		"total_assessed", summary.TotalAssessed.String())
	return nil
}

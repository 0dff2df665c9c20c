package worker

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
	"fintrack/internal/records"
)

// AlertWorker persists budget alerts received from the broker
type AlertWorker struct {
	alerts  records.AlertStore
	logger  *log.StructuredLogger
	timeout time.Duration
}

func NewAlertWorker(alerts records.AlertStore, logger *log.StructuredLogger) *AlertWorker {
	if logger == nil {
		logger = log.NewStructuredLogger(log.New(log.DefaultConfig()))
	}
	return &AlertWorker{
		alerts:  alerts,
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

// Handle stores one alert message. Messages that do not describe a valid
// alert are logged and dropped, since redelivery cannot fix them. Store
// failures are returned so the delivery is requeued.
func (w *AlertWorker) Handle(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	alert, err := msg.Alert()
	if err != nil {
		w.logger.LogError(ctx, "Dropping invalid budget alert", err, log.ComponentWorker, log.OpValidate,
			log.NewFields().WithUser(msg.UserID))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	inserted, err := w.alerts.RecordAlert(ctx, alert)
	if err != nil {
		return fmt.Errorf("record alert %s: %w", msg.ID, err)
	}
	if !inserted {
		// already recorded for this window and status
		return nil
	}

	w.logger.LogBudgetAlert(ctx, alert.UserID, alert.BudgetID, alert.Category, string(alert.Period), alert.Status, alert.Percentage)
	return nil
}

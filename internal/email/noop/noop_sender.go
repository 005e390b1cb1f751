package noop

import (
	"context"

	"go.uber.org/zap"

	"billrecon/internal/domain"
	"billrecon/internal/email"
	"billrecon/internal/port"
)

type noopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates an EmailSender that only logs the summary.
func NewNoopSender(logger *zap.Logger) port.EmailSender {
	return &noopSender{logger: logger.With(zap.String("component", "email.noop"))}
}

func (s *noopSender) SendRunSummary(_ context.Context, recipients []string, run *domain.ReconciliationRun, snapshot *domain.LedgerSnapshot) error {
	summary := email.RenderSummary(run, snapshot)
	s.logger.Info("run summary",
		zap.Strings("recipients", recipients),
		zap.String("subject", summary.Subject),
		zap.String("body", summary.Text),
	)
	return nil
}

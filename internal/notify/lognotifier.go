package notify

import (
	"github.com/sirupsen/logrus"

	"github.com/betbot/golighter/internal/domain"
	"github.com/betbot/golighter/internal/ports"
)

// LogNotifier writes outcomes to the log. Used when Telegram is not
// configured.
type LogNotifier struct{}

var _ ports.Notifier = (*LogNotifier)(nil)

func NewLog() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) NotifyOutcome(o *domain.ExecutionOutcome) {
	entry := log.WithFields(logrus.Fields{
		"request": o.RequestID,
		"account": o.AccountIndex,
		"market":  o.Symbol,
		"result":  o.Result,
	})
	switch o.Result {
	case domain.ResultCompleted:
		if o.Warning != "" {
			entry.Warnf("execution completed with warning: %s", o.Warning)
		} else {
			entry.Infof("execution completed, filled %.6f @ %.6f", o.FilledBase, o.AvgFillPrice)
		}
	case domain.ResultRejected:
		entry.Infof("execution rejected: %s", o.Detail)
	case domain.ResultCanceled:
		entry.Info("execution canceled")
	default:
		entry.Errorf("execution failed: %s", o.Detail)
	}
}

func (n *LogNotifier) NotifySystem(title, message string) {
	log.Infof("%s: %s", title, message)
}

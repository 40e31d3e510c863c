package progress

import "log/slog"

// Notifier fans pipeline status out to the broker and the logger.
type Notifier struct {
	Broker *Broker
	Logger *slog.Logger
}

func (n *Notifier) Info(msg string) {
	n.Logger.Info(msg)
	n.Broker.Publish(Event{Type: "run.info", Data: map[string]string{"message": msg}})
}

func (n *Notifier) Error(msg string) {
	n.Logger.Error(msg)
	n.Broker.Publish(Event{Type: "run.error", Data: map[string]string{"message": msg}})
}

func (n *Notifier) Progress(msg string, current, total int) {
	n.Logger.Info(msg, slog.Int("current", current), slog.Int("total", total))
	n.Broker.PublishProgress(msg, current, total)
}

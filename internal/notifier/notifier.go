// Package notifier delivers fire-and-forget events to users and live feeds.
// Delivery failures are logged and dropped; they never block or roll back the
// request lifecycle.
package notifier

import "helpboard_miniapp/internal/model"

type Sink interface {
	RequestAccepted(req *model.HelpRequest)
	RequestCompleted(req *model.HelpRequest, pointsAwarded int)
	BadgeAwarded(userID int64, badge model.Badge)
}

// Fanout dispatches each event to every configured sink.
type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) RequestAccepted(req *model.HelpRequest) {
	for _, s := range f.sinks {
		s.RequestAccepted(req)
	}
}

func (f *Fanout) RequestCompleted(req *model.HelpRequest, pointsAwarded int) {
	for _, s := range f.sinks {
		s.RequestCompleted(req, pointsAwarded)
	}
}

func (f *Fanout) BadgeAwarded(userID int64, badge model.Badge) {
	for _, s := range f.sinks {
		s.BadgeAwarded(userID, badge)
	}
}

// Noop is used when no sink is configured and in tests.
type Noop struct{}

func (Noop) RequestAccepted(*model.HelpRequest)       {}
func (Noop) RequestCompleted(*model.HelpRequest, int) {}
func (Noop) BadgeAwarded(int64, model.Badge)          {}

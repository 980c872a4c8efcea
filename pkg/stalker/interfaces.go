package stalker

import "github.com/unifitools/wifistalker/pkg/models"

//go:generate mockgen -destination=mock_stalker.go -package=stalker github.com/unifitools/wifistalker/pkg/stalker EventSink

// EventSink receives transition events as the reconciler produces them.
// Dispatch must not block; sinks queue or drop on their own.
type EventSink interface {
	Dispatch(event *models.TransitionEvent)
}

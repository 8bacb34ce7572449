package eventbus

import (
	"context"
	"log"
)

// LogConsumer logs finished round trips and cache changes.
type LogConsumer struct{}

func NewLogConsumer() *LogConsumer { return &LogConsumer{} }

func (c *LogConsumer) HandleEvent(_ context.Context, evt Event) error {
	switch evt.Type {
	case LoadingFinished:
		status := "ok"
		if evt.Failed {
			status = "failed"
		}
		log.Printf("event: %s %s %s took %s", evt.Type, evt.Action, status, evt.Elapsed)
	case CacheUpdated:
		log.Printf("event: %s applied=%d types=%v lastUpdate=%d", evt.Type, evt.Applied, evt.Types, evt.LastUpdate)
	}
	return nil
}

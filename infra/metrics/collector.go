package metrics

import (
	"context"

	"github.com/kilianp07/evagent/core/events"
	coremetrics "github.com/kilianp07/evagent/core/metrics"
	"github.com/kilianp07/evagent/internal/eventbus"
)

// StartEventCollector subscribes to the EV update bus and records a device
// state for every event. It stops when the context is canceled or the bus
// is closed. It returns a channel closed once the collector has exited.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.EVUpdate], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	rec, ok := sink.(coremetrics.DeviceStateRecorder)
	if bus == nil || !ok {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				_ = rec.RecordDeviceState(coremetrics.DeviceStateEvent{
					AgentID: ev.AgentID,
					State:   ev.State,
					Time:    ev.Time,
				})
			}
		}
	}()
	return done
}

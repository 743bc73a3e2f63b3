// Package events defines the agent events emitted on the event bus.
//
// Available event types:
//   - EVUpdate: device state snapshot taken at every connected bid cycle
//   - BidPublished: a bid accepted by the coordinator
//   - PriceHandled: outcome of an inbound price update
package events

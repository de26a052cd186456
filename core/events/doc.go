// Package events defines the service events emitted on the event bus.
//
// Available event types:
//   - DecisionEvent: a decision cycle produced or refreshed a decision
//   - PriceEvent: the hourly series was fetched or re-forecasted
//   - OverrideEvent: a manual override was accepted or cleared
//   - SessionEvent: a charging session started or ended
package events

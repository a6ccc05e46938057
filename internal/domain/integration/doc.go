// Package integration contains the order-sync bounded context between the
// source ERP (IQR) and the destination fulfillment platform (ShipStation).
//
// Key concepts:
//   - SourceERP / Destination: port interfaces implemented by the HTTP clients in infrastructure
//   - RawSourceOrder / SourceOrder: the ERP's native order and its normalized form
//   - DestinationOrder: the fulfillment platform's order carrying the idempotency key
//   - SyncResult / TrackingUpdate / ActivityRecord: per-run and per-event value objects
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration

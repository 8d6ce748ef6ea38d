// Package invalidation carries collection change events over Kafka so that
// every process sharing a data set drops its cached lists when one of them
// writes.
//
// A Publisher writes JSON events keyed by collection:
//
//	{"eventId":"5d0c4e5a-8f7e-4b7e-9a51-2f0e1c8b7a10","collection":"contacts","op":"update","id":"c1","at":"2024-05-01T12:00:00Z"}
//
// A Subscriber reads them and calls InvalidateCollection on its Invalidator,
// usually a *cache.ResultCache or the di.Container.
package invalidation

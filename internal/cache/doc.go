// Package cache implements the room occupancy cache driven by the event
// router.
//
// The router only speaks the UserCache mutation contract; backends decide
// storage. Memory keeps the roster in-process, Redis shares it across
// processes as one hash per room. Both are filled by a Loader that pages
// the current roster from the REST API, triggered once per handshake and
// optionally by the reconciliation poller.
package cache

// Package api provides the Atria platform REST client.
//
// REST endpoints:
//   - Production: https://api.atria.live/v1
//   - Staging: https://api.staging.atria.live/v1
//
// The client authenticates with the api-token header and serves as the
// roster source for the presence cache: GET /rooms/{id}/users pages
// through the room's current occupants.
package api

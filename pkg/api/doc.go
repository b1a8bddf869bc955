// Package api exposes the resource service over HTTP. The Service type
// orchestrates permission validation, transactional storage access and
// entity-delete events; the Server wires it to gorilla/mux routes.
package api

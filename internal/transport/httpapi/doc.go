// Package httpapi is the JSON request layer over the scheduling coordinator.
//
// Routes live under /api/v1. Errors are returned as {"error","message","field"}
// with the status derived from the error kind.
package httpapi

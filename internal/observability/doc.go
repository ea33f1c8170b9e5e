// Package observability builds the service logger and the Prometheus collectors
// shared by the HTTP layer, the application service and the notification dispatcher.
package observability

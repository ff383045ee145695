// Package handler implements the HTTP surface of the item service: item
// creation and lookup, enrichment, health, and the middleware every request
// passes through (correlation identifier, access log with metrics, panic
// recovery). Errors are rendered as a JSON body with a status derived from
// the record error taxonomy.
package handler

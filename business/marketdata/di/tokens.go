// Package di contains dependency injection tokens for the marketdata
// context.
package di

// DI tokens for the marketdata module.
const (
	TransportHost = "marketdata.TransportHost"
	Foundation    = "marketdata.Foundation"
)

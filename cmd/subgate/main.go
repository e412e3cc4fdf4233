// Package main is the entry point for subgate, the subscription-gated
// usage metering service.
package main

func main() {
	Execute()
}

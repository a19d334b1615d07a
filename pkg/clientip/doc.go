// Package clientip resolves the address of the caller behind reverse proxies.
//
// A Resolver trusts only the headers it was built with, in order, and falls
// back to the TCP peer address. The resolved address is stored in the request
// context by Middleware and read back with FromContext; LoggerExtractor adds
// it to log records as client_ip.
package clientip

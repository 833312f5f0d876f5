// Package crawler defines the types shared between sources, the orchestrator
// and everything that consumes scraped records.
//
// A Source turns a Query into a lazy sequence of Records. Sources know nothing
// about each other; the orchestrator package runs many of them at once.
package crawler

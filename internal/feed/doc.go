// Package feed binds exchange channels to the in-memory stores.
//
// PriceFeed subscribes to /v2/prices. PositionFeed loads a wallet's
// positions over REST, then merges channel updates and periodic REST
// refreshes into the position store. Both drop anything that arrives
// after Stop.
package feed

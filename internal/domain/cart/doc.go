// Package cart contains the Cart bounded context.
// It models a local mirror of one remote storefront cart.
//
// Key concepts:
//   - Cart: authoritative snapshot returned by the remote cart service
//   - Snapshot: local cart state with derived item count and total
//   - Line: one cart line with a denormalized product snapshot for display
//   - ChangeEvent: notification payload emitted after each state change
//
// Design Pattern: Ports & Adapters
//   - RemoteService and Store are ports defined here
//   - Adapters live in the infrastructure layer (Shopify storefront, proxy client, gorm/redis stores)
package cart

// Package catalog contains the Catalog bounded context.
// It mirrors externally managed product records into the relational products table.
//
// Key concepts:
//   - Record: loosely typed record from the source catalog (Airtable)
//   - Product: mirror row keyed by its source system identifier
//   - Normalize: pure mapping from a Record attribute bag to a Product
//   - SyncReport: outcome of one full reconciliation pass
//
// Design Pattern: Ports & Adapters
//   - Source, MirrorRepository and RunLock are ports defined here
//   - Adapters live in the infrastructure layer
package catalog

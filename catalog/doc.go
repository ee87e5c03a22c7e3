// Package catalog manages the partner lifecycle.
//
// The Catalog type is the only writer of partners. Every write:
//   - Validates the partner fields
//   - Embeds the partner's projection text
//   - Stores the fields, embedding, lexemes and digest together
//
// An embedding failure aborts the write, so a stored partner always carries
// artifacts computed from its current fields. Bulk imports embed in batches
// on a worker pool.
package catalog

// Package reembed recomputes the embeddings of stored partners, typically
// after switching embedding models.
//
// Partners are paged in ID order, embedded in batches with retry and
// exponential backoff, and written back one by one. A partner whose fields
// changed after its batch was read keeps the embedding its own update
// computed and is counted as skipped.
package reembed

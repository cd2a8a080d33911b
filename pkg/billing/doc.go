// Package billing manages quotes and invoices: sequential document
// numbering, lifecycle state machines, and the deferred side effects of
// sending and settling documents.
//
// Numbers are allocated inside the insert statement itself, with a unique
// constraint and a bounded retry closing the race between concurrent
// creations. Display codes derive from the number as Q-<year>-000001 and
// I-<year>-000001.
//
// Sending a document never flips its status directly. It enqueues a task
// that renders the PDF, uploads it, stores the file pointer, mails it, and
// only then marks the document sent. A failed render leaves the status
// untouched.
package billing

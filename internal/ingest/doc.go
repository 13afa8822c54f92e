// Package ingest feeds content into the knowledge store: batch
// ingestion of prepared documents with per-record failure skipping,
// and a polite web crawler that turns documentation sites into
// crawl-type records.
package ingest

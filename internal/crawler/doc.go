// Package crawler holds the records, identities, errors and retry policy shared
// by the scraping and enrichment stages of the coffee-map pipeline.
package crawler

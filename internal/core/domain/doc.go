// Package domain holds the entities every other package shares.
//
// A Document is one ingested file, keyed by filename. Loaders turn it into
// Segments (a PDF page, a spreadsheet row, a paragraph), the chunker turns
// segments into Chunks that carry page and section metadata for
// citations, and a question ends as an Answer with its Sources and
// Metrics. QueryAnalysis is the analyzer's view of a raw question.
//
// Settings, the answer states and the sentinel errors live here too, so
// adapters can classify failures without importing services.
//
// Only the standard library may be imported from this package.
package domain

// Package transcript exports a conversation as a self-contained HTML page.
//
// Message content is treated as Markdown (goldmark with autolinks and
// strikethrough). Raw HTML inside messages is dropped by the Markdown
// renderer, and names are escaped by html/template.
package transcript

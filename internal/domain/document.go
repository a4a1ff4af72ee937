package domain

import "strings"

// Document is one ingested source file, already decoded to text
type Document struct {
	Name    string `json:"name" binding:"required"`
	Content string `json:"content"`
}

// IngestRequest is the request to load documents into the session
type IngestRequest struct {
	Documents []Document `json:"documents" binding:"required"`
}

// EditRecordsRequest is the request to replace the record text
type EditRecordsRequest struct {
	Text string `json:"text"`
}

// JoinDocuments concatenates documents, each under a "=== name ===" header line
func JoinDocuments(docs []Document) string {
	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = "=== " + doc.Name + " ===\n" + doc.Content
	}
	return strings.Join(parts, "\n\n")
}

// Package model defines the shared domain types for the document chat service.
package model

import "time"

// Document describes the single uploaded document the service answers
// questions about.
type Document struct {
	// ID is a ULID assigned at upload time.
	ID string `json:"id"`

	// Name is the original file name.
	Name string `json:"name"`

	// Format is the normalized file extension, e.g. ".txt".
	Format string `json:"format"`

	// Size is the uploaded payload size in bytes.
	Size int64 `json:"size"`

	// Chars is the number of Unicode characters of extracted text.
	Chars int `json:"chars"`

	// ChunkCount is the number of chunks produced by splitting.
	ChunkCount int `json:"chunk_count"`

	// ContentHash is the SHA-256 of the extracted text. Used as the cache
	// key for derived artifacts so re-uploading identical content hits.
	ContentHash string `json:"-"`

	// Text is the full extracted text. Kept in memory only.
	Text string `json:"-"`

	// UploadedAt is when the document replaced the previous one.
	UploadedAt time.Time `json:"uploaded_at"`
}

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"asked_at"`
}

// ChunkRef points at a retrieved chunk that grounded an answer.
type ChunkRef struct {
	ChunkID  string  `json:"chunk_id"`
	Index    int     `json:"index"`
	Content  string  `json:"content"`
	Distance float32 `json:"distance"`
}

// Answer is the result of one ask operation.
type Answer struct {
	Text    string     `json:"answer"`
	Sources []ChunkRef `json:"sources"`
}

// UploadResult summarizes a successful upload.
type UploadResult struct {
	Document   *Document `json:"document"`
	ChunkCount int       `json:"chunk_count"`
}

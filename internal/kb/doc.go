// Package kb defines the core knowledge-base domain types shared by the
// indexing and retrieval pipelines, along with the error kinds the service
// boundaries branch on.
package kb

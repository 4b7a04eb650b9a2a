package apperrors

import "errors"

var (
	ErrSchemaNotFound      = errors.New("table not found in schema")
	ErrEmbeddingFailed     = errors.New("embedding unavailable")
	ErrEmptyQuestion       = errors.New("question is empty")
	ErrNoSQLGenerated      = errors.New("no SQL generated in response")
	ErrGenerationExhausted = errors.New("SQL generation retries exhausted")
)

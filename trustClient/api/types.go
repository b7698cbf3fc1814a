package api

import "time"

// QueryResponse represents the standard query response format
type QueryResponse struct {
	Data        interface{} `json:"data"`
	LastFetched time.Time   `json:"last_fetched"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// AddSourceRequest is the body of POST /api/v1/sources
type AddSourceRequest struct {
	Param string `json:"param"`
}

// SourceAccepted is returned when a registration or refresh has been queued.
type SourceAccepted struct {
	SourceID string `json:"source_id"`
}

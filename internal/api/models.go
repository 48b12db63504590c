package api

import "github.com/povarna/generative-ai-agents/gitsensei/internal/models"

type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	SearchMode string `json:"search_mode"`
	Chunks     int    `json:"chunks"`
}

type SearchRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results,omitempty"`
}

type SearchResult struct {
	ChunkID        string                `json:"chunk_id"`
	Text           string                `json:"text"`
	SourceFilename string                `json:"source_filename"`
	Score          float64               `json:"score"`
	Sources        []models.ResultSource `json:"sources"`
}

type SearchResponse struct {
	Query   string         `json:"query"`
	Mode    string         `json:"mode"`
	Results []SearchResult `json:"results"`
}

type AskRequest struct {
	Question string `json:"question"`
}

type AskResponse struct {
	Response  string            `json:"response"`
	Success   bool              `json:"success"`
	ToolCalls []models.ToolCall `json:"tool_calls"`
	LogFile   string            `json:"log_file,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type EvaluateRequest struct {
	Question     string            `json:"question"`
	Answer       string            `json:"answer"`
	Instructions string            `json:"instructions,omitempty"`
	ToolCalls    []models.ToolCall `json:"tool_calls,omitempty"`
}

package types

import "math"

// ChatResult is the outcome of one chat exchange
type ChatResult struct {
	Answer     string
	Intent     Tag
	Confidence float64 // Raw similarity score, not rounded
	History    []Turn
}

// ChatResponse is the wire form of a ChatResult
type ChatResponse struct {
	Answer     string  `json:"answer"`
	Intent     Tag     `json:"intent"`
	Confidence float64 `json:"confidence"`
	History    []Turn  `json:"history"`
}

// Response converts the result to its wire form, rounding confidence to 2 decimals
func (r *ChatResult) Response() ChatResponse {
	history := r.History
	if history == nil {
		history = []Turn{}
	}
	return ChatResponse{
		Answer:     r.Answer,
		Intent:     r.Intent,
		Confidence: RoundConfidence(r.Confidence),
		History:    history,
	}
}

// RoundConfidence rounds a score to two decimal places
func RoundConfidence(score float64) float64 {
	return math.Round(score*100) / 100
}

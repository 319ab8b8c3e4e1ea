package model

import (
	"time"
)

// RunStatus represents the outcome of a single company run.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete" // every stage produced real content
	RunStatusDegraded RunStatus = "degraded" // row written with sentinel values
	RunStatusFailed   RunStatus = "failed"   // per-company boundary caught an error
)

// Company is one row of the input table.
type Company struct {
	Row              int    `json:"row"`
	Name             string `json:"name"`
	RawURL           string `json:"raw_url"`
	Email            string `json:"email,omitempty"`
	KnownDescription string `json:"known_description,omitempty"`
}

// Run is the persisted record of one company's pipeline run.
type Run struct {
	ID        string     `json:"id"`
	BatchID   string     `json:"batch_id"`
	Company   Company    `json:"company"`
	Status    RunStatus  `json:"status"`
	TotalCost float64    `json:"total_cost"`
	Result    *OutputRow `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

package data

import "github.com/khaledhikmat/ws-go/model"

type IService interface {
	SaveSnapshot(counters model.StatCounters) error
	RetrieveSnapshot() (model.StatCounters, error)

	NewError(err interface{}) error
	NewAgentStats(stats model.AgentStats) error
	NewDetectorStats(stats model.DetectorStats) error
	NewAlerterStats(stats model.AlerterStats) error
}

package model

import (
	"fmt"
	"runtime/debug"
	"time"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %s", e.Processor, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// UserIdentity is the external auth system's id for a user. Empty means anonymous.
type UserIdentity string

func (u UserIdentity) Anonymous() bool {
	return u == ""
}

type DetectionEvent struct {
	RunID      string       `json:"runId"`
	User       UserIdentity `json:"user,omitempty"`
	Category   Category     `json:"category"`
	Confidence float32      `json:"confidence"`
	Timestamp  time.Time    `json:"timestamp"`
}

type StatsUpdate struct {
	User      UserIdentity `json:"user"`
	Counters  StatCounters `json:"counters"`
	Timestamp time.Time    `json:"timestamp"`
}

type User struct {
	ID         int64        `json:"id"`
	ExternalID UserIdentity `json:"externalId"`
	Email      string       `json:"email,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// WasteStatistics is the persisted per-user counter row.
type WasteStatistics struct {
	ID        int64        `json:"id"`
	User      UserIdentity `json:"user"`
	Counters  StatCounters `json:"counters"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type DetectorStats struct {
	Name            string  `json:"name"`
	RunID           string  `json:"runId"`
	Source          string  `json:"source"`
	Frames          int     `json:"frames"`
	MotionFrames    int     `json:"motionFrames"`
	Classifications int     `json:"classifications"`
	Accepted        int     `json:"accepted"`
	Rejected        int     `json:"rejected"`
	Errors          int     `json:"errors"`
	FPS             int     `json:"fps"`
	AvgProcTime     float64 `json:"avgProcTime"`
	Uptime          int64   `json:"uptime"`
	Timestamp       int64   `json:"timestamp"`
}

type AlerterStats struct {
	Name      string `json:"name"`
	Alerts    int    `json:"alerts"`
	Dropped   int    `json:"dropped"`
	Errors    int    `json:"errors"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}

type AgentStats struct {
	ID        string       `json:"id"`
	User      UserIdentity `json:"user"`
	Source    string       `json:"source"`
	Uptime    int64        `json:"uptime"`
	Timestamp int64        `json:"timestamp"`
}

// Image is the pixel buffer of one captured frame. *gocv.Mat satisfies it.
type Image interface {
	Empty() bool
	Close() error
}

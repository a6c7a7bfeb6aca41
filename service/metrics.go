package service

import (
	"sync"
	"time"
)

// MetricsCollector tracks counts and cumulative durations per operation.
type MetricsCollector struct {
	mu sync.RWMutex

	registrationStartTime time.Time
	registrationEndTime   time.Time
	registrationCount     int
	registrationTotalTime time.Duration

	votingStartTime time.Time
	votingEndTime   time.Time
	votingCount     int
	votingTotalTime time.Duration

	countingStartTime      time.Time
	countingEndTime        time.Time
	countingCount          int
	countingProcessingTime time.Duration

	rejections map[Kind]int
}

// OperationMetrics contains timing information for an operation
type OperationMetrics struct {
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Count          int       `json:"count"`
	ProcessingTime int64     `json:"processing_time_ms"`
}

// MetricsResponse provides the metrics for all operations
type MetricsResponse struct {
	Registration OperationMetrics `json:"registration"`
	Voting       OperationMetrics `json:"voting"`
	Counting     OperationMetrics `json:"counting"`
	Rejections   map[Kind]int     `json:"rejections"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{rejections: make(map[Kind]int)}
}

// RecordRegistration records one successful registration.
func (mc *MetricsCollector) RecordRegistration(started time.Time) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.registrationCount == 0 {
		mc.registrationStartTime = started
	}
	mc.registrationCount++
	mc.registrationEndTime = time.Now()
	mc.registrationTotalTime += mc.registrationEndTime.Sub(started)
}

// RecordVote records one committed vote.
func (mc *MetricsCollector) RecordVote(started time.Time) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.votingCount == 0 {
		mc.votingStartTime = started
	}
	mc.votingCount++
	mc.votingEndTime = time.Now()
	mc.votingTotalTime += mc.votingEndTime.Sub(started)
}

// RecordCounting records one completed tally.
func (mc *MetricsCollector) RecordCounting(started time.Time) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.countingStartTime = started
	mc.countingEndTime = time.Now()
	mc.countingCount++
	mc.countingProcessingTime = mc.countingEndTime.Sub(started)
}

// RecordRejection counts a failed request by kind.
func (mc *MetricsCollector) RecordRejection(kind Kind) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.rejections[kind]++
}

// GetMetrics returns current metrics for all operations
func (mc *MetricsCollector) GetMetrics() MetricsResponse {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	rejections := make(map[Kind]int, len(mc.rejections))
	for k, v := range mc.rejections {
		rejections[k] = v
	}

	return MetricsResponse{
		Registration: OperationMetrics{
			StartTime:      mc.registrationStartTime,
			EndTime:        mc.registrationEndTime,
			Count:          mc.registrationCount,
			ProcessingTime: mc.registrationTotalTime.Milliseconds(),
		},
		Voting: OperationMetrics{
			StartTime:      mc.votingStartTime,
			EndTime:        mc.votingEndTime,
			Count:          mc.votingCount,
			ProcessingTime: mc.votingTotalTime.Milliseconds(),
		},
		Counting: OperationMetrics{
			StartTime:      mc.countingStartTime,
			EndTime:        mc.countingEndTime,
			Count:          mc.countingCount,
			ProcessingTime: mc.countingProcessingTime.Milliseconds(),
		},
		Rejections: rejections,
	}
}

package service

import (
	"sync"
	"time"
)

// VotingSession is the window during which registration and voting are
// accepted. A zero duration keeps it open until End is called.
type VotingSession struct {
	startTime time.Time
	endTime   time.Time
	isActive  bool
	mu        sync.RWMutex
	now       func() time.Time
}

func NewVotingSession(duration time.Duration) *VotingSession {
	return newVotingSession(duration, time.Now)
}

func newVotingSession(duration time.Duration, now func() time.Time) *VotingSession {
	start := now()
	vs := &VotingSession{
		startTime: start,
		isActive:  true,
		now:       now,
	}
	if duration > 0 {
		vs.endTime = start.Add(duration)
	}
	return vs
}

func (vs *VotingSession) IsActive() bool {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	if !vs.isActive {
		return false
	}
	return vs.endTime.IsZero() || vs.now().Before(vs.endTime)
}

func (vs *VotingSession) End() {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.isActive {
		vs.isActive = false
		if vs.endTime.IsZero() || vs.now().Before(vs.endTime) {
			vs.endTime = vs.now()
		}
	}
}

// SessionStatus is the public view of the session.
type SessionStatus struct {
	Active    bool       `json:"active"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

func (vs *VotingSession) Status() SessionStatus {
	active := vs.IsActive()

	vs.mu.RLock()
	defer vs.mu.RUnlock()
	st := SessionStatus{Active: active, StartTime: vs.startTime}
	if !vs.endTime.IsZero() {
		end := vs.endTime
		st.EndTime = &end
	}
	return st
}

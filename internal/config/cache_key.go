package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionAnswersKey returns the cache key for a session's autosaved answers.
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SessionStartKey returns the cache key for a session's start timestamp.
func (r *CacheKeyStruct) SessionStartKey(sessionID string) string {
	return fmt.Sprintf("session:%s:started_at", sessionID)
}

// ExamPayloadKey returns the cache key for an exam's participant payload.
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// ExamDurationKey returns the cache key for an exam's duration in minutes.
func (r *CacheKeyStruct) ExamDurationKey(examID string) string {
	return fmt.Sprintf("exam:%s:duration", examID)
}

// ExamResultsChannel returns the Redis PubSub channel carrying newly
// completed results for an exam. The organizer results feed subscribes here.
func (r *CacheKeyStruct) ExamResultsChannel(examID string) string {
	return fmt.Sprintf("exam:%s:results", examID)
}

// OrganizerSessionKey returns the cache key for an organizer's login session.
func (r *CacheKeyStruct) OrganizerSessionKey(organizerID int) string {
	return fmt.Sprintf("login:organizer:%d", organizerID)
}

var CacheKey = NewCacheKeyStruct()

package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ParsedProblemKey returns the cache key for the parser output of an existing problem
func (r *CacheKeyStruct) ParsedProblemKey(problemID int64) string {
	return fmt.Sprintf("parse:problem:%d", problemID)
}

// BulkRunChannel returns the Redis PubSub channel name for a bulk run's progress events
func (r *CacheKeyStruct) BulkRunChannel(runID string) string {
	return fmt.Sprintf("bulk:%s:events", runID)
}

var CacheKey = NewCacheKeyStruct()

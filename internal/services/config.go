package services

import "time"

// EngineConfig holds the session and generation policy values.
type EngineConfig struct {
	CheckInTTL           time.Duration
	ConsultationTTL      time.Duration
	GenerationTimeout    time.Duration
	SweepInterval        time.Duration
	RecentEntryWindow    int
	MaxCheckInQuestions  int
	ConsultationMaxTurns int
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CheckInTTL:           30 * time.Minute,
		ConsultationTTL:      45 * time.Minute,
		GenerationTimeout:    90 * time.Second,
		SweepInterval:        time.Minute,
		RecentEntryWindow:    3,
		MaxCheckInQuestions:  5,
		ConsultationMaxTurns: 40,
	}
}

func (c EngineConfig) withDefaults() EngineConfig {
	d := DefaultEngineConfig()
	if c.CheckInTTL <= 0 {
		c.CheckInTTL = d.CheckInTTL
	}
	if c.ConsultationTTL <= 0 {
		c.ConsultationTTL = d.ConsultationTTL
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = d.GenerationTimeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.RecentEntryWindow <= 0 {
		c.RecentEntryWindow = d.RecentEntryWindow
	}
	if c.MaxCheckInQuestions <= 0 {
		c.MaxCheckInQuestions = d.MaxCheckInQuestions
	}
	if c.ConsultationMaxTurns <= 0 {
		c.ConsultationMaxTurns = d.ConsultationMaxTurns
	}
	return c
}

package domain

import (
	"github.com/yungbote/bloomie-backend/internal/domain/genetics"
	"github.com/yungbote/bloomie-backend/internal/domain/journal"
	"github.com/yungbote/bloomie-backend/internal/domain/roadmap"
	"github.com/yungbote/bloomie-backend/internal/domain/sessions"
)

const (
	CategoryCognitive = genetics.CategoryCognitive
	CategoryImmunity  = genetics.CategoryImmunity
	CategoryGrowth    = genetics.CategoryGrowth

	EntryTypeInitial   = journal.EntryTypeInitial
	EntryTypeCheckIn   = journal.EntryTypeCheckIn
	EntryTypeEmergency = journal.EntryTypeEmergency

	StreamEntries     = journal.StreamEntries
	StreamMedicalLogs = journal.StreamMedicalLogs
	MedicalDisclaimer = journal.MedicalDisclaimer

	CheckInTypeWeekly    = sessions.CheckInTypeWeekly
	CheckInTypeEmergency = sessions.CheckInTypeEmergency
	CheckInTypeInitial   = sessions.CheckInTypeInitial

	SessionStatusActive    = sessions.StatusActive
	SessionStatusSubmitted = sessions.StatusSubmitted
	SessionStatusAbandoned = sessions.StatusAbandoned
	SessionStatusCompleted = sessions.StatusCompleted
	SessionStatusDiscarded = sessions.StatusDiscarded

	SpeakerParent    = sessions.SpeakerParent
	SpeakerAssistant = sessions.SpeakerAssistant
)

type TraitReference = genetics.TraitReference
type Marker = genetics.Marker
type MatchedTrait = genetics.MatchedTrait
type ChildTraitSet = genetics.ChildTraitSet

type LogEntry = journal.LogEntry
type Recommendation = journal.Recommendation
type AnswerRecord = journal.AnswerRecord
type MedicalVisitLog = journal.MedicalVisitLog
type LogStreamCursor = journal.LogStreamCursor

type Milestone = roadmap.Milestone
type MilestoneBucket = roadmap.MilestoneBucket
type MilestoneCache = roadmap.MilestoneCache

type Question = sessions.Question
type CheckInSession = sessions.CheckInSession
type Turn = sessions.Turn
type ConversationSession = sessions.ConversationSession

var ValidCheckInType = sessions.ValidCheckInType
var MonthsBetween = genetics.MonthsBetween

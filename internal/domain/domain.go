// Package domain re-exports the persisted models so callers can import one
// package as types.
package domain

import (
	"github.com/Crohnos/dnd-generator/internal/domain/campaign"
	"github.com/Crohnos/dnd-generator/internal/domain/jobs"
	"github.com/Crohnos/dnd-generator/internal/domain/world"
)

type (
	Campaign            = campaign.Campaign
	CampaignStageStatus = campaign.StageStatus
	PlayerCharacter     = campaign.PlayerCharacter
	CampaignProgress    = campaign.Progress

	JobRun = jobs.JobRun

	WorldRecord = world.Record
	WorldLink   = world.Link

	CalendarSystem   = world.CalendarSystem
	Plane            = world.Plane
	GeographyRegion  = world.GeographyRegion
	HistoricalPeriod = world.HistoricalPeriod
	EconomicSystem   = world.EconomicSystem
	LegalSystem      = world.LegalSystem
	CelestialBody    = world.CelestialBody

	Race           = world.Race
	CharacterClass = world.CharacterClass
	Feat           = world.Feat
	Background     = world.Background

	Language = world.Language
	Culture  = world.Culture
	Faction  = world.Faction
	Pantheon = world.Pantheon
	Deity    = world.Deity

	Entity               = world.Entity
	Location             = world.Location
	Dungeon              = world.Dungeon
	Building             = world.Building
	Item                 = world.Item
	ItemEffect           = world.ItemEffect
	SentientItemProperty = world.SentientItemProperty
	QuestHook            = world.QuestHook
	Encounter            = world.Encounter
	Shop                 = world.Shop
	Tavern               = world.Tavern
	Temple               = world.Temple

	EntityRelationship  = world.EntityRelationship
	EntityLocation      = world.EntityLocation
	EntityFaction       = world.EntityFaction
	FactionRelationship = world.FactionRelationship
	EntityItem          = world.EntityItem
	LocationItem        = world.LocationItem
)

const (
	CampaignStatusCreated    = campaign.StatusCreated
	CampaignStatusGenerating = campaign.StatusGenerating
	CampaignStatusCompleted  = campaign.StatusCompleted
	CampaignStatusError      = campaign.StatusError

	JobStatusQueued    = jobs.StatusQueued
	JobStatusRunning   = jobs.StatusRunning
	JobStatusSucceeded = jobs.StatusSucceeded
	JobStatusFailed    = jobs.StatusFailed
	JobStatusCanceled  = jobs.StatusCanceled

	EntityTypePC  = world.EntityTypePC
	EntityTypeNPC = world.EntityTypeNPC

	QuestStatusAvailable = world.QuestStatusAvailable
	QuestStatusActive    = world.QuestStatusActive
	QuestStatusCompleted = world.QuestStatusCompleted
)

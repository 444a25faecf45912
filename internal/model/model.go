package model

import (
	"github.com/LeonardoBeccarini/smartbin/internal/model/entities"
	"github.com/LeonardoBeccarini/smartbin/internal/model/messages"
)

// Alias per esporre tipi comuni ai servizi

type (
	Category             = entities.Category
	CompartmentPins      = entities.CompartmentPins
	RegistrationEvent    = messages.RegistrationEvent
	FullnessEvent        = messages.FullnessEvent
	RemoteCommand        = messages.RemoteCommand
	Action               = messages.Action
	ImageRef             = messages.ImageRef
	ClassificationResult = messages.ClassificationResult
)

const (
	CategoryUnknown   = entities.CategoryUnknown
	CategoryTrash     = entities.CategoryTrash
	CategoryPaper     = entities.CategoryPaper
	CategoryPlastic   = entities.CategoryPlastic
	CategoryMetal     = entities.CategoryMetal
	CategoryGlass     = entities.CategoryGlass
	CategoryCardboard = entities.CategoryCardboard

	ActionOpen  = messages.ActionOpen
	ActionClose = messages.ActionClose

	DefaultButtonPin = entities.DefaultButtonPin
)

var (
	ParseCategory      = entities.ParseCategory
	AllCategories      = entities.AllCategories
	ParseRemoteCommand = messages.ParseRemoteCommand
	Unclassified       = messages.Unclassified
	DefaultPinTable    = entities.DefaultPinTable
)

// internal/models/entity.go
package models

import "time"

// Token is a normalized word or punctuation unit.
type Token struct {
	Text  string `json:"text"`
	Index int    `json:"index"`
}

type EntityType string

const (
	EntityDate       EntityType = "DATE"
	EntityMoney      EntityType = "MONEY"
	EntityQuantity   EntityType = "QUANTITY"
	EntityPercentage EntityType = "PERCENTAGE"
	EntityClient     EntityType = "CLIENT"
	EntityOrder      EntityType = "ORDER"
	EntityInvoice    EntityType = "INVOICE"
	EntityPlace      EntityType = "PLACE"
	EntityStatus     EntityType = "STATUS"
)

// Span is a half-open byte range [Start, End) into the normalized query.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

func (s Span) Len() int { return s.End - s.Start }

type ValueKind string

const (
	ValueDate    ValueKind = "date"
	ValueDecimal ValueKind = "decimal"
	ValueFloat   ValueKind = "float"
	ValueInteger ValueKind = "integer"
	ValueText    ValueKind = "text"
)

// Value is the normalized form of an entity. Text always holds a canonical
// rendering; Number and Date are set according to Kind.
type Value struct {
	Kind   ValueKind `json:"kind"`
	Text   string    `json:"text"`
	Number float64   `json:"number,omitempty"`
	Date   time.Time `json:"date,omitempty"`
}

// Entity is a typed, located substring of the normalized query.
// NormalizedValue is nil when the raw text could not be parsed.
type Entity struct {
	Type            EntityType `json:"type"`
	RawText         string     `json:"rawText"`
	Span            Span       `json:"span"`
	NormalizedValue *Value     `json:"normalizedValue,omitempty"`
	Confidence      float64    `json:"confidence"`
}

// HasEntity reports whether any entity has type t.
func HasEntity(entities []Entity, t EntityType) bool {
	for _, e := range entities {
		if e.Type == t {
			return true
		}
	}
	return false
}

// FirstEntity returns the first entity of type t.
func FirstEntity(entities []Entity, t EntityType) (Entity, bool) {
	for _, e := range entities {
		if e.Type == t {
			return e, true
		}
	}
	return Entity{}, false
}

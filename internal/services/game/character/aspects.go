package character

import (
	"fmt"

	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
	"github.com/louisbranch/tapestry/internal/platform/dotpath"
)

// AspectScores holds the eight aspect values in four pairs.
type AspectScores struct {
	Might   MightScores   `json:"might"`
	Finesse FinesseScores `json:"finesse"`
	Wit     WitScores     `json:"wit"`
	Resolve ResolveScores `json:"resolve"`
}

type MightScores struct {
	Strength int `json:"strength"`
	Presence int `json:"presence"`
}

type FinesseScores struct {
	Agility int `json:"agility"`
	Charm   int `json:"charm"`
}

type WitScores struct {
	Instinct  int `json:"instinct"`
	Knowledge int `json:"knowledge"`
}

type ResolveScores struct {
	Willpower int `json:"willpower"`
	Empathy   int `json:"empathy"`
}

// AspectKey labels one aspect inside a block.
type AspectKey struct {
	Key   string
	Label string
}

// AspectBlock is one display group of aspects.
type AspectBlock struct {
	Title string
	Group string
	Keys  [2]AspectKey
}

// Blocks lists the aspect groups in display order.
var Blocks = []AspectBlock{
	{Title: "Might", Group: "might", Keys: [2]AspectKey{{"strength", "Strength"}, {"presence", "Presence"}}},
	{Title: "Finesse", Group: "finesse", Keys: [2]AspectKey{{"agility", "Agility"}, {"charm", "Charm"}}},
	{Title: "Wit", Group: "wit", Keys: [2]AspectKey{{"instinct", "Instinct"}, {"knowledge", "Knowledge"}}},
	{Title: "Resolve", Group: "resolve", Keys: [2]AspectKey{{"willpower", "Willpower"}, {"empathy", "Empathy"}}},
}

// ErrUnknownAspect indicates a group/key pair outside Blocks.
var ErrUnknownAspect = apperrors.New(apperrors.CodeCharacterInvalidPatch, "unknown aspect")

// AspectPath returns the update path for an aspect.
func AspectPath(group, key string) string {
	return "sheet.aspects." + group + "." + key
}

// ValidAspect reports whether group/key names a known aspect.
func ValidAspect(group, key string) bool {
	for _, block := range Blocks {
		if block.Group != group {
			continue
		}
		for _, k := range block.Keys {
			if k.Key == key {
				return true
			}
		}
	}
	return false
}

// AspectValue returns the score for group/key, or zero for unknown aspects.
func (a AspectScores) AspectValue(group, key string) int {
	switch group + "." + key {
	case "might.strength":
		return a.Might.Strength
	case "might.presence":
		return a.Might.Presence
	case "finesse.agility":
		return a.Finesse.Agility
	case "finesse.charm":
		return a.Finesse.Charm
	case "wit.instinct":
		return a.Wit.Instinct
	case "wit.knowledge":
		return a.Wit.Knowledge
	case "resolve.willpower":
		return a.Resolve.Willpower
	case "resolve.empathy":
		return a.Resolve.Empathy
	default:
		return 0
	}
}

// SumAspects totals every aspect score.
func SumAspects(a AspectScores) int {
	sum := 0
	for _, block := range Blocks {
		for _, k := range block.Keys {
			sum += a.AspectValue(block.Group, k.Key)
		}
	}
	return sum
}

// AspectStep builds the patch moving one aspect by delta. Values are not
// clamped.
func AspectStep(s Sheet, group, key string, delta int) (dotpath.Patch, error) {
	if !ValidAspect(group, key) {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAspect, group, key)
	}
	next := s.Body.Aspects.AspectValue(group, key) + delta
	return dotpath.Set(AspectPath(group, key), next), nil
}

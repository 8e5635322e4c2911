package character

import (
	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
	"github.com/louisbranch/tapestry/internal/platform/dotpath"
)

// Resource update paths.
const (
	PathHPCurrent      = "sheet.resources.hp.current"
	PathHPMax          = "sheet.resources.hp.max"
	PathHPTemp         = "sheet.resources.hp.temp"
	PathThreadsCurrent = "sheet.resources.threads.current"
	PathName           = "name"
	PathNotes          = "sheet.notes"
)

// HPMode selects how an HP change applies.
type HPMode string

const (
	HPDamage HPMode = "damage"
	HPHeal   HPMode = "heal"
	HPSet    HPMode = "set"
)

// ThreadsMode selects how a threads change applies.
type ThreadsMode string

const (
	ThreadsSpend ThreadsMode = "spend"
	ThreadsGain  ThreadsMode = "gain"
	ThreadsSet   ThreadsMode = "set"
)

// ErrUnknownMode indicates an unsupported resource mode.
var ErrUnknownMode = apperrors.New(apperrors.CodeInvalidRequest, "unknown resource mode")

// HPChange describes one HP adjustment. Max and Temp override the sheet's
// values when set.
type HPChange struct {
	Mode         HPMode
	Amount       int
	Max          *int
	Temp         *int
	UseTempFirst bool
}

// Resolve computes the resulting HP track. Amounts below zero count as zero,
// temporary points absorb damage first when UseTempFirst is set, and current
// is clamped to [0, max]. A zero max leaves current untouched.
func (c HPChange) Resolve(hp ResourceTrack) (ResourceTrack, error) {
	maxHP := hp.Max
	if maxHP <= 0 {
		maxHP = max(10, hp.Current)
	}
	if c.Max != nil {
		maxHP = *c.Max
	}
	maxHP = max(0, maxHP)

	temp := hp.TempValue()
	if c.Temp != nil {
		temp = *c.Temp
	}
	temp = max(0, temp)
	amount := max(0, c.Amount)

	current := hp.Current
	if maxHP > 0 {
		switch c.Mode {
		case HPDamage:
			remaining := amount
			if c.UseTempFirst && temp > 0 {
				used := min(temp, amount)
				temp -= used
				remaining -= used
			}
			current = clamp(current-remaining, 0, maxHP)
		case HPHeal:
			current = clamp(current+amount, 0, maxHP)
		case HPSet:
			current = clamp(amount, 0, maxHP)
		default:
			return ResourceTrack{}, ErrUnknownMode
		}
	} else if !validHPMode(c.Mode) {
		return ResourceTrack{}, ErrUnknownMode
	}

	return ResourceTrack{Current: current, Max: maxHP, Temp: &temp}, nil
}

func validHPMode(mode HPMode) bool {
	return mode == HPDamage || mode == HPHeal || mode == HPSet
}

// Patch resolves the change against the sheet and returns the max, temp and
// current updates in that order.
func (c HPChange) Patch(s Sheet) (dotpath.Patch, ResourceTrack, error) {
	next, err := c.Resolve(s.Body.Resources.HP)
	if err != nil {
		return nil, ResourceTrack{}, err
	}
	patch := dotpath.Set(PathHPMax, next.Max).
		Set(PathHPTemp, next.TempValue()).
		Set(PathHPCurrent, next.Current)
	return patch, next, nil
}

// ThreadsChange describes one threads adjustment.
type ThreadsChange struct {
	Mode   ThreadsMode
	Amount int
}

// Resolve returns the new threads current value clamped to [0, max].
func (c ThreadsChange) Resolve(threads ResourceTrack) (int, error) {
	amount := max(0, c.Amount)
	switch c.Mode {
	case ThreadsSpend:
		return clamp(threads.Current-amount, 0, threads.Max), nil
	case ThreadsGain:
		return clamp(threads.Current+amount, 0, threads.Max), nil
	case ThreadsSet:
		return clamp(amount, 0, threads.Max), nil
	default:
		return 0, ErrUnknownMode
	}
}

// Patch resolves the change against the sheet.
func (c ThreadsChange) Patch(s Sheet) (dotpath.Patch, int, error) {
	next, err := c.Resolve(s.Body.Resources.Threads)
	if err != nil {
		return nil, 0, err
	}
	return dotpath.Set(PathThreadsCurrent, next), next, nil
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}

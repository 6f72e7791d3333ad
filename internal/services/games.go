package services

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"fairplay-backend/internal/models"
)

// Game maps a revealed draw and the player's selection to a payout.
type Game interface {
	Draw() models.DrawSpec
	ValidateSelection(selection string) error
	// Payout returns the amount credited for a winning round, 0 for a loss.
	Payout(outcome []int, selection string, amount int64) int64
}

var catalog = map[models.GameType]Game{
	models.GameTypeSlots:    slotsGame{},
	models.GameTypeRoulette: rouletteGame{},
	models.GameTypeDice:     diceGame{},
	models.GameTypeCoinFlip: coinFlipGame{},
}

func LookupGame(t models.GameType) (Game, error) {
	g, ok := catalog[t]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownGame, "%q", string(t))
	}
	return g, nil
}

func invalidSelection(selection string) error {
	return errors.Wrapf(ErrInvalidSelection, "%q", selection)
}

// slotsGame is a 3x3 grid of six symbols paid on three rows and both
// diagonals.
type slotsGame struct{}

var (
	slotPaylines = [][3]int{
		{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
		{0, 4, 8}, {2, 4, 6},
	}
	slotMultipliers = [6]int64{1, 2, 3, 5, 10, 15}
)

func (slotsGame) Draw() models.DrawSpec { return models.DrawSpec{Count: 9, Min: 0, Max: 5} }

func (slotsGame) ValidateSelection(selection string) error {
	if selection != "" {
		return invalidSelection(selection)
	}
	return nil
}

func (slotsGame) Payout(outcome []int, _ string, amount int64) int64 {
	if len(outcome) != 9 {
		return 0
	}
	var win int64
	for _, line := range slotPaylines {
		a, b, c := outcome[line[0]], outcome[line[1]], outcome[line[2]]
		if a == b && b == c && a >= 0 && a < len(slotMultipliers) {
			win += amount * slotMultipliers[a]
		}
	}
	return win
}

// rouletteGame is single-zero roulette. Selections are "straight:N", "red",
// "black", "odd" or "even".
type rouletteGame struct{}

var rouletteRed = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

func (rouletteGame) Draw() models.DrawSpec { return models.DrawSpec{Count: 1, Min: 0, Max: 36} }

func (rouletteGame) ValidateSelection(selection string) error {
	switch selection {
	case "red", "black", "odd", "even":
		return nil
	}
	if n, ok := straightNumber(selection); ok && n >= 0 && n <= 36 {
		return nil
	}
	return invalidSelection(selection)
}

func straightNumber(selection string) (int, bool) {
	rest, ok := strings.CutPrefix(selection, "straight:")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	return n, err == nil
}

func (rouletteGame) Payout(outcome []int, selection string, amount int64) int64 {
	if len(outcome) != 1 {
		return 0
	}
	n := outcome[0]
	if s, ok := straightNumber(selection); ok {
		if s == n {
			return amount * 36
		}
		return 0
	}
	if n == 0 {
		return 0
	}

	var win bool
	switch selection {
	case "red":
		win = rouletteRed[n]
	case "black":
		win = !rouletteRed[n]
	case "odd":
		win = n%2 == 1
	case "even":
		win = n%2 == 0
	}
	if win {
		return amount * 2
	}
	return 0
}

// diceGame rolls 1..100. "under:N" wins below N and "over:N" above N; the
// payout keeps a 1% edge over the winning chance.
type diceGame struct{}

func (diceGame) Draw() models.DrawSpec { return models.DrawSpec{Count: 1, Min: 1, Max: 100} }

func diceTarget(selection string) (under bool, target int, ok bool) {
	side, value, found := strings.Cut(selection, ":")
	if !found {
		return false, 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return false, 0, false
	}
	switch side {
	case "under":
		return true, n, n >= 2 && n <= 99
	case "over":
		return false, n, n >= 1 && n <= 98
	}
	return false, 0, false
}

func (diceGame) ValidateSelection(selection string) error {
	if _, _, ok := diceTarget(selection); !ok {
		return invalidSelection(selection)
	}
	return nil
}

func (diceGame) Payout(outcome []int, selection string, amount int64) int64 {
	under, target, ok := diceTarget(selection)
	if !ok || len(outcome) != 1 {
		return 0
	}
	roll := outcome[0]

	var chance int64
	if under {
		if roll >= target {
			return 0
		}
		chance = int64(target - 1)
	} else {
		if roll <= target {
			return 0
		}
		chance = int64(100 - target)
	}
	return amount * 99 / chance
}

// coinFlipGame draws 0 for heads and 1 for tails.
type coinFlipGame struct{}

func (coinFlipGame) Draw() models.DrawSpec { return models.DrawSpec{Count: 1, Min: 0, Max: 1} }

func (coinFlipGame) ValidateSelection(selection string) error {
	if selection != "heads" && selection != "tails" {
		return invalidSelection(selection)
	}
	return nil
}

func (coinFlipGame) Payout(outcome []int, selection string, amount int64) int64 {
	if len(outcome) != 1 {
		return 0
	}
	side := "heads"
	if outcome[0] == 1 {
		side = "tails"
	}
	if side == selection {
		return amount * 2
	}
	return 0
}

package board

import (
	"fmt"

	"github.com/spf13/viper"
)

// CellKind classifies one position on the track.
type CellKind string

const (
	CellNormal   CellKind = "normal"
	CellGoodLuck CellKind = "goodluck"
	CellBadLuck  CellKind = "badluck"
	CellQuestion CellKind = "question"
	CellCard     CellKind = "card"
)

// Board maps track positions to cell kinds. Positions not present in the
// table are normal cells. Position 0 is the start cell; a player whose
// position strictly exceeds TrackLength has won.
type Board struct {
	TrackLength int
	cells       map[int]CellKind
}

const DefaultTrackLength = 45

var defaultCells = map[CellKind][]int{
	CellQuestion: {5, 12, 19, 26, 33, 40},
	CellBadLuck:  {3, 10, 17, 24, 31, 38},
	CellGoodLuck: {7, 14, 21, 28, 35, 42},
	CellCard:     {9, 16, 23, 30, 37, 44},
}

// Default returns the standard 45-cell layout.
func Default() *Board {
	b := &Board{TrackLength: DefaultTrackLength, cells: make(map[int]CellKind)}
	for kind, positions := range defaultCells {
		for _, p := range positions {
			b.cells[p] = kind
		}
	}
	return b
}

// Load reads an alternate layout from a YAML file:
//
//	track_length: 45
//	cells:
//	  question: [5, 12]
//	  goodluck: [7, 14]
//	  badluck: [3, 10]
//	  card: [9, 16]
//
// Missing keys fall back to the default layout's values.
func Load(path string) (*Board, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("track_length", DefaultTrackLength)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read board config: %w", err)
	}

	b := &Board{
		TrackLength: v.GetInt("track_length"),
		cells:       make(map[int]CellKind),
	}
	if b.TrackLength < 1 {
		return nil, fmt.Errorf("invalid track_length: %d", b.TrackLength)
	}

	kinds := []CellKind{CellQuestion, CellGoodLuck, CellBadLuck, CellCard}
	for _, kind := range kinds {
		key := "cells." + string(kind)
		positions := defaultCells[kind]
		if v.IsSet(key) {
			positions = v.GetIntSlice(key)
		}
		for _, p := range positions {
			if p < 1 || p > b.TrackLength {
				return nil, fmt.Errorf("cell position %d out of range for %s", p, kind)
			}
			if existing, ok := b.cells[p]; ok {
				return nil, fmt.Errorf("cell position %d assigned to both %s and %s", p, existing, kind)
			}
			b.cells[p] = kind
		}
	}
	return b, nil
}

// CellAt returns the kind of the cell at pos.
func (b *Board) CellAt(pos int) CellKind {
	if kind, ok := b.cells[pos]; ok {
		return kind
	}
	return CellNormal
}

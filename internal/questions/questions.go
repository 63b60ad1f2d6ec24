package questions

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

var ErrNoQuestions = errors.New("no questions available for that difficulty")

type Question struct {
	ID            int      `json:"id"`
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Difficulty    string   `json:"difficulty"`
	Explanation   string   `json:"explanation"`
}

// Source draws one random question from the given difficulty tier.
type Source interface {
	Draw(difficulty string) (Question, error)
}

// Pool is a Source backed by an in-memory question list.
type Pool struct {
	questions []Question
	rng       *rand.Rand
}

func NewPool(qs []Question, seed uint64) *Pool {
	return &Pool{questions: qs, rng: rand.New(rand.NewPCG(seed, seed))}
}

// LoadFile reads a pool from a JSON file shaped {"questions": [...]}.
func LoadFile(path string, seed uint64) (*Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions file: %w", err)
	}
	var db struct {
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("parse questions file: %w", err)
	}
	return NewPool(db.Questions, seed), nil
}

func (p *Pool) Len() int { return len(p.questions) }

func (p *Pool) Draw(difficulty string) (Question, error) {
	matching := make([]Question, 0, len(p.questions))
	for _, q := range p.questions {
		if q.Difficulty == difficulty {
			matching = append(matching, q)
		}
	}
	if len(matching) == 0 {
		return Question{}, ErrNoQuestions
	}
	return matching[p.rng.IntN(len(matching))], nil
}

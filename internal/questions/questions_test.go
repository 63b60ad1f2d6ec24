package questions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQuestions() []Question {
	return []Question{
		{ID: 1, Text: "easy one", Options: []string{"a", "b"}, CorrectAnswer: 0, Difficulty: DifficultyEasy},
		{ID: 2, Text: "easy two", Options: []string{"a", "b"}, CorrectAnswer: 1, Difficulty: DifficultyEasy},
		{ID: 3, Text: "medium one", Options: []string{"a", "b"}, CorrectAnswer: 0, Difficulty: DifficultyMedium},
	}
}

func TestDraw_FiltersByDifficulty(t *testing.T) {
	p := NewPool(testQuestions(), 1)

	for i := 0; i < 20; i++ {
		q, err := p.Draw(DifficultyEasy)
		require.NoError(t, err)
		assert.Equal(t, DifficultyEasy, q.Difficulty)
	}

	q, err := p.Draw(DifficultyMedium)
	require.NoError(t, err)
	assert.Equal(t, 3, q.ID)
}

func TestDraw_EmptyTier(t *testing.T) {
	p := NewPool(testQuestions(), 1)
	_, err := p.Draw(DifficultyHard)
	assert.ErrorIs(t, err, ErrNoQuestions)

	empty := NewPool(nil, 1)
	_, err = empty.Draw(DifficultyEasy)
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	content := `{
		"questions": [
			{
				"id": 10,
				"question": "Which planet is closest to the sun?",
				"options": ["Venus", "Mercury", "Mars", "Earth"],
				"correctAnswer": 1,
				"difficulty": "easy",
				"explanation": "Mercury orbits at about 58 million km."
			}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := LoadFile(path, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())

	q, err := p.Draw(DifficultyEasy)
	require.NoError(t, err)
	assert.Equal(t, 10, q.ID)
	assert.Equal(t, "Which planet is closest to the sun?", q.Text)
	assert.Equal(t, 1, q.CorrectAnswer)
	assert.Equal(t, "Mercury orbits at about 58 million km.", q.Explanation)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"), 1)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadFile(path, 1)
	assert.Error(t, err)
}

// Package seed reads question sets from YAML files.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/victornm/merryquiz/internal/domain"
)

// File is the on-disk layout of a question set.
type File struct {
	Questions []domain.Question `yaml:"questions"`
}

type QuestionWriter interface {
	InsertQuestions(ctx context.Context, qs []domain.Question) error
}

// Load reads and validates the question set at path.
func Load(path string) ([]domain.Question, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}

	return Decode(bytes.NewReader(b))
}

// Decode parses a question set and rejects questions that could not be played.
func Decode(r io.Reader) ([]domain.Question, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}

	for i, q := range f.Questions {
		if q.Question == "" {
			return nil, fmt.Errorf("seed: question #%d: empty question text", i+1)
		}
		if q.CorrectAnswer == "" {
			return nil, fmt.Errorf("seed: question #%d: empty correct answer", i+1)
		}
		seen := make(map[string]struct{}, len(q.WrongAnswers))
		for _, w := range q.WrongAnswers {
			if w == q.CorrectAnswer {
				return nil, fmt.Errorf("seed: question #%d: wrong answer %q equals the correct answer", i+1, w)
			}
			if _, ok := seen[w]; ok {
				return nil, fmt.Errorf("seed: question #%d: wrong answer %q is listed twice", i+1, w)
			}
			seen[w] = struct{}{}
		}
	}

	return f.Questions, nil
}

// Apply loads the file at path and writes its questions through w.
func Apply(ctx context.Context, w QuestionWriter, path string) (int, error) {
	qs, err := Load(path)
	if err != nil {
		return 0, err
	}

	if err := w.InsertQuestions(ctx, qs); err != nil {
		return 0, fmt.Errorf("seed: insert: %w", err)
	}

	return len(qs), nil
}

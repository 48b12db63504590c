package evaluation

import (
	"fmt"
	"slices"
	"sync"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
)

// Observer is notified after every state change of a question.
type Observer func(index int, from, to models.QuestionState)

var transitions = map[models.QuestionState][]models.QuestionState{
	models.StatePending:    {models.StateAsking, models.StateAsked, models.StateFailed},
	models.StateAsking:     {models.StateAsked, models.StateFailed},
	models.StateAsked:      {models.StateEvaluating, models.StateFailed},
	models.StateEvaluating: {models.StateEvaluated, models.StateFailed},
}

// tracker owns the state of every question in one batch.
type tracker struct {
	mu       sync.Mutex
	states   []models.QuestionState
	observer Observer
}

func newTracker(n int, observer Observer) *tracker {
	states := make([]models.QuestionState, n)
	for i := range states {
		states[i] = models.StatePending
	}
	return &tracker{states: states, observer: observer}
}

func (t *tracker) advance(index int, to models.QuestionState) error {
	t.mu.Lock()
	from := t.states[index]
	if !slices.Contains(transitions[from], to) {
		t.mu.Unlock()
		return fmt.Errorf("illegal transition for question %d: %s -> %s", index, from, to)
	}
	t.states[index] = to
	t.mu.Unlock()

	if t.observer != nil {
		t.observer(index, from, to)
	}
	return nil
}

func (t *tracker) state(index int) models.QuestionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[index]
}

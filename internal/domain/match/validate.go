package match

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the structural rules a snapshot must satisfy before it is
// allowed into the score cache.
func Validate(s Snapshot) error {
	if err := validatorInstance().Struct(s); err != nil {
		return err
	}
	for i, event := range s.Events {
		if event.Team == "" && event.credited() {
			return fmt.Errorf("event %d (%s at %s) has no team", i, event.Type, event.Clock())
		}
	}
	for i := 1; i < len(s.Events); i++ {
		if s.Events[i].before(s.Events[i-1]) {
			return fmt.Errorf(
				"event %d at %s precedes event %d at %s",
				i, s.Events[i].Clock(), i-1, s.Events[i-1].Clock(),
			)
		}
	}
	return nil
}

// credited events move the score or a side's numbers and must name a team.
func (e Event) credited() bool {
	return e.Type == EventGoal || e.Type == EventRedCard
}

func (e Event) before(other Event) bool {
	if e.Minute != other.Minute {
		return e.Minute < other.Minute
	}
	return e.ExtraMinute < other.ExtraMinute
}

// Clock renders the event minute the way match threads show it, e.g. 45+2'.
func (e Event) Clock() string {
	if e.ExtraMinute > 0 {
		return fmt.Sprintf("%d+%d'", e.Minute, e.ExtraMinute)
	}
	return fmt.Sprintf("%d'", e.Minute)
}

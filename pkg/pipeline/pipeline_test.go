package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestPipelineStepOrder(t *testing.T) {
	p := New().
		AddStep(func(records []any) []any {
			for i, r := range records {
				records[i] = r.(int) + 1
			}
			return records
		}).
		AddStep(func(records []any) []any {
			for i, r := range records {
				records[i] = r.(int) * 10
			}
			return records
		})

	got, err := p.Run(context.Background(), []any{1, 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// (1+1)*10, (2+1)*10: add ran before multiply.
	if got[0] != 20 || got[1] != 30 {
		t.Errorf("Run() = %v, want [20 30]", got)
	}
}

func TestPipelineFinalSteps(t *testing.T) {
	var mu sync.Mutex
	var sinks [][]any

	sink := func(records []any) error {
		mu.Lock()
		sinks = append(sinks, records)
		mu.Unlock()
		return nil
	}

	p := New().
		AddStep(func(records []any) []any { return append(records, "extra") }).
		AddFinalStep(sink, sink)

	got, err := p.Run(context.Background(), []any{"a"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Run() = %v, want transformed batch of 2", got)
	}
	if len(sinks) != 2 {
		t.Fatalf("final steps ran %d times, want 2", len(sinks))
	}
	for _, batch := range sinks {
		if len(batch) != 2 {
			t.Errorf("final step saw %v, want the transformed batch", batch)
		}
	}
}

func TestPipelineFinalStepError(t *testing.T) {
	sinkErr := errors.New("disk full")
	p := New().AddFinalStep(func(records []any) error { return sinkErr })

	if _, err := p.Run(context.Background(), []any{1}); !errors.Is(err, sinkErr) {
		t.Errorf("Run() error = %v, want %v", err, sinkErr)
	}
}

func TestPipelineEmpty(t *testing.T) {
	got, err := New().Run(context.Background(), []any{1, 2, 3})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Run() = %v, want untouched batch", got)
	}
}

package finder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyperjump/seek/internal/models"
)

func TestExecution_CancelIsIdempotent(t *testing.T) {
	exec, em := NewExecution(context.Background())
	if !exec.Cancel() {
		t.Fatal("first Cancel() should succeed")
	}
	if exec.Cancel() {
		t.Error("second Cancel() while pending should return false")
	}
	if !exec.IsCanceled() {
		t.Error("IsCanceled() should be true")
	}
	if em.Context().Err() == nil {
		t.Error("emitter context should be cancelled")
	}

	go em.End()
	var end EndEvent
	for ev := range exec.Events() {
		if e, ok := ev.(EndEvent); ok {
			end = e
		}
	}
	if !end.Cancelled {
		t.Error("EndEvent should report Cancelled")
	}
}

func TestExecution_CancelAfterEnd(t *testing.T) {
	exec, em := NewExecution(context.Background())
	go em.End()
	<-exec.Done()
	if exec.Cancel() {
		t.Error("Cancel() after end should return false")
	}
	if exec.IsCanceled() {
		t.Error("IsCanceled() should be false when nothing was cancelled")
	}
}

func TestExecution_EventOrder(t *testing.T) {
	exec, em := NewExecution(context.Background())
	a := &models.FileSystemObject{Name: "a"}
	b := &models.FileSystemObject{Name: "b"}
	go func() {
		em.Start()
		em.Partial([]*models.FileSystemObject{a})
		em.Partial(nil)
		em.Partial([]*models.FileSystemObject{b})
		em.Error(errors.New("boom"))
		em.End()
	}()

	var kinds []string
	for ev := range exec.Events() {
		switch e := ev.(type) {
		case StartEvent:
			kinds = append(kinds, "start")
		case PartialResultEvent:
			kinds = append(kinds, "partial:"+e.Results[0].Name)
		case ErrorEvent:
			kinds = append(kinds, "error")
		case EndEvent:
			kinds = append(kinds, "end")
		}
	}
	want := []string{"start", "partial:a", "partial:b", "error", "end"}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestExecution_AbandonUnblocksProducer(t *testing.T) {
	exec, em := NewExecution(context.Background())
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < 100; i++ {
			if !em.Partial([]*models.FileSystemObject{{Name: "x"}}) {
				break
			}
		}
		em.End()
	}()
	exec.Abandon()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("producer still blocked after Abandon")
	}
}

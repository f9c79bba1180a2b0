package active

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestWaitUntilCompletesWhenExpressionBecomesTrue(t *testing.T) {
	o := NewOptions()
	obs := NewObservable()
	obs.SetProperty("Ready", false)

	param := Param("o", reflect.TypeOf(obs))
	lambda := Lambda(Member(param, "Ready", reflect.TypeOf(true)), param)

	go func() {
		time.Sleep(10 * time.Millisecond)
		obs.SetProperty("Ready", true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := WaitUntil(ctx, lambda, o, obs); err != nil {
		t.Fatalf("WaitUntil: %v", err)
	}
}

func TestWaitUntilReturnsImmediatelyWhenAlreadyTrue(t *testing.T) {
	o := NewOptions()
	obs := NewObservable()
	obs.SetProperty("Ready", true)

	param := Param("o", reflect.TypeOf(obs))
	lambda := Lambda(Member(param, "Ready", reflect.TypeOf(true)), param)

	if err := WaitUntil(context.Background(), lambda, o, obs); err != nil {
		t.Fatalf("WaitUntil: %v", err)
	}
}

func TestWaitUntilHonorsCancellation(t *testing.T) {
	o := NewOptions()
	obs := NewObservable()
	obs.SetProperty("Ready", false)

	param := Param("o", reflect.TypeOf(obs))
	lambda := Lambda(Member(param, "Ready", reflect.TypeOf(true)), param)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := WaitUntil(ctx, lambda, o, obs); !errors.Is(err, context.Canceled) {
		t.Fatalf("WaitUntil = %v, want context.Canceled", err)
	}
}

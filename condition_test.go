package ready

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// fakeDocument is an in-memory Document backed by a set of matching selectors.
type fakeDocument struct {
	mu        sync.Mutex
	selectors map[string]bool
}

func (d *fakeDocument) add(selector string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selectors == nil {
		d.selectors = make(map[string]bool)
	}
	d.selectors[selector] = true
}

func (d *fakeDocument) Match(selector string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selectors[selector]
}

func TestCondition_Name(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		want string
	}{
		{"named predicate", PredicateFunc(func() bool { return true }).Named("db"), "db"},
		{"unnamed predicate", PredicateFunc(func() bool { return true }), "predicate"},
		{"selector", Selector("#app"), "#app"},
		{"named selector", Selector("#app").Named("app-root"), "app-root"},
		{"always true", AlwaysTrue(), "always-true"},
		{"zero value", Condition{}, "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Name(); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCondition_String(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		want string
	}{
		{"named predicate", PredicateFunc(func() bool { return true }).Named("db"), "predicate(db)"},
		{"unnamed predicate", PredicateFunc(func() bool { return true }), "predicate"},
		{"selector", Selector("#app"), "selector(#app)"},
		{"always true", AlwaysTrue(), "always-true"},
		{"zero value", Condition{}, "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCondition_Validate(t *testing.T) {
	doc := &fakeDocument{}

	tests := []struct {
		name    string
		cond    Condition
		doc     Document
		wantErr bool
	}{
		{"valid predicate", PredicateFunc(func() bool { return true }), nil, false},
		{"nil predicate", Predicate(nil), nil, true},
		{"valid selector", Selector("#app"), doc, false},
		{"empty selector", Selector(""), doc, true},
		{"selector without document", Selector("#app"), nil, true},
		{"always true", AlwaysTrue(), nil, false},
		{"zero value", Condition{}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cond.validate(tt.doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEvaluate_Predicate(t *testing.T) {
	sentinel := errors.New("check failed")

	tests := []struct {
		name    string
		fn      func(ctx context.Context) (bool, error)
		want    bool
		wantErr error
	}{
		{"true", func(context.Context) (bool, error) { return true, nil }, true, nil},
		{"false", func(context.Context) (bool, error) { return false, nil }, false, nil},
		{"error", func(context.Context) (bool, error) { return false, sentinel }, false, sentinel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := evaluate(context.Background(), Predicate(tt.fn), nil, testLogger())
			if ok != tt.want {
				t.Errorf("evaluate() = %v, want %v", ok, tt.want)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("evaluate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEvaluate_Selector(t *testing.T) {
	doc := &fakeDocument{}

	ok, err := evaluate(context.Background(), Selector("#app"), doc, testLogger())
	if err != nil {
		t.Fatalf("evaluate() error = %v", err)
	}
	if ok {
		t.Error("evaluate() = true before the selector matched")
	}

	doc.add("#app")
	ok, err = evaluate(context.Background(), Selector("#app"), doc, testLogger())
	if err != nil {
		t.Fatalf("evaluate() error = %v", err)
	}
	if !ok {
		t.Error("evaluate() = false after the selector matched")
	}
}

func TestEvaluate_PanicRecovery(t *testing.T) {
	cond := Predicate(func(context.Context) (bool, error) {
		panic("boom")
	})

	ok, err := evaluate(context.Background(), cond, nil, testLogger())
	if ok {
		t.Error("evaluate() = true for a panicking predicate")
	}
	if err == nil {
		t.Fatal("evaluate() should convert a panic to an error")
	}
	if !strings.Contains(err.Error(), "correlation_id") {
		t.Errorf("evaluate() error = %q, want a correlation_id reference", err)
	}
}

func TestEvalErrorPolicy_String(t *testing.T) {
	if got := RetryOnError.String(); got != "retry-on-error" {
		t.Errorf("RetryOnError.String() = %q", got)
	}
	if got := StopOnError.String(); got != "stop-on-error" {
		t.Errorf("StopOnError.String() = %q", got)
	}
	if got := EvalErrorPolicy(99).String(); got != "unknown" {
		t.Errorf("EvalErrorPolicy(99).String() = %q", got)
	}
}

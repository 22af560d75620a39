package runtime

import (
	"testing"
	"time"

	"patternlang/internal/eval"
	"patternlang/internal/pattern"
	"patternlang/internal/source"
)

func TestExecuteSynchronous(t *testing.T) {
	rt := New(Options{WorkerCount: 1})
	defer rt.Close()
	rt.SetDataSource(source.NewMemorySource([]byte{0x2A, 0x00, 0x00, 0x00}))

	res, err := rt.Execute("t.hexpat", `u32 value @ 0x0;`, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(res.Patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(res.Patterns))
	}
}

func TestExecuteUsesInVars(t *testing.T) {
	rt := New(Options{WorkerCount: 1})
	defer rt.Close()
	rt.SetDataSource(source.NewMemorySource([]byte{0x01, 0x02, 0x03, 0x04}))

	res, err := rt.Execute("t.hexpat", `u8 data[count] @ 0x0;`, map[string]eval.Value{
		"count": eval.UintValue(3),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	arr, ok := res.Patterns[0].(*pattern.Array)
	if !ok {
		t.Fatalf("expected *pattern.Array, got %T", res.Patterns[0])
	}
	if len(arr.Children) != 3 {
		t.Fatalf("expected in-var-sized array of 3, got %d", len(arr.Children))
	}
}

func TestSubmitAndAbort(t *testing.T) {
	rt := New(Options{WorkerCount: 1})
	defer rt.Close()
	rt.SetDataSource(source.NewMemorySource([]byte{0x01}))

	job := rt.Submit("spin", "t.hexpat", `
fn spin() {
	u64 i = 0;
	while (true) {
		i = i + 1;
	}
}
u8 trigger @ spin();
`, nil)

	time.Sleep(20 * time.Millisecond)
	rt.Abort()
	res, err := job.Result()
	if err == nil {
		t.Fatalf("expected the aborted job to surface the interrupt, got result %v", res)
	}
}

func TestSetLimitRejectsUnknownKind(t *testing.T) {
	rt := New(Options{WorkerCount: 1})
	defer rt.Close()
	if err := rt.SetLimit("bogus", 5); err == nil {
		t.Fatalf("expected an error for an unknown limit kind")
	}
	if err := rt.SetLimit("max-patterns", 5); err != nil {
		t.Fatalf("unexpected error setting max-patterns: %v", err)
	}
}

func TestRegisterPragmaHandlerFires(t *testing.T) {
	rt := New(Options{WorkerCount: 1})
	defer rt.Close()
	rt.SetDataSource(source.NewMemorySource([]byte{0x01}))

	var seen string
	rt.RegisterPragmaHandler("endian", func(v string) { seen = v })

	_, err := rt.Execute("t.hexpat", "#pragma endian big\nu8 value @ 0x0;", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if seen != "big" {
		t.Fatalf("expected pragma handler to observe %q, got %q", "big", seen)
	}
}

func TestExecuteWithoutDataSourceErrors(t *testing.T) {
	rt := New(Options{WorkerCount: 1})
	defer rt.Close()
	if _, err := rt.Execute("t.hexpat", `u8 v @ 0x0;`, nil); err == nil {
		t.Fatalf("expected an error when no data source has been installed")
	}
}

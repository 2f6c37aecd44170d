package llm

import "testing"

func TestStripCodeFences(t *testing.T) {
	t.Parallel()

	got := StripCodeFences("```json\n{\"a\": 1}\n```")
	if got != `{"a": 1}` {
		t.Fatalf("unexpected result: %q", got)
	}

	if got := StripCodeFences("plain text"); got != "plain text" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestExtractJSONTrimsProse(t *testing.T) {
	t.Parallel()

	response := "Here is the plan:\n{\"tasks\": [1, 2]}\nHope this helps!"
	if got := ExtractJSON(response); got != `{"tasks": [1, 2]}` {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	var v struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON("```json\n{\"name\": \"x\"}\n```", &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Name != "x" {
		t.Fatalf("unexpected value: %q", v.Name)
	}

	if err := DecodeJSON("not json at all", &v); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestExtractPythonBlock(t *testing.T) {
	t.Parallel()

	code, ok := ExtractPythonBlock("Sure:\n```python\nprint('hi')\n```\nDone.")
	if !ok {
		t.Fatal("expected a python block")
	}
	if code != "print('hi')" {
		t.Fatalf("unexpected code: %q", code)
	}

	if _, ok := ExtractPythonBlock("no code here"); ok {
		t.Fatal("expected no python block")
	}
}

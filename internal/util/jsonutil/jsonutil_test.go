package jsonutil

import "testing"

func TestStripFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  ```json\n{\"a\":1}\n```  ", "{\"a\":1}"},
	}
	for _, c := range cases {
		if got := StripFences(c.in); got != c.want {
			t.Fatalf("StripFences(%q): got=%q want=%q", c.in, got, c.want)
		}
	}
}

func TestUnmarshalLoose(t *testing.T) {
	type payload struct {
		Summary string `json:"summary"`
	}

	var p payload
	if err := UnmarshalLoose([]byte(`{"summary":"direct"}`), &p); err != nil || p.Summary != "direct" {
		t.Fatalf("direct: %v %+v", err, p)
	}

	p = payload{}
	if err := UnmarshalLoose([]byte("```json\n{\"summary\":\"fenced\"}\n```"), &p); err != nil || p.Summary != "fenced" {
		t.Fatalf("fenced: %v %+v", err, p)
	}

	p = payload{}
	if err := UnmarshalLoose([]byte("Sure! Here you go: {\"summary\":\"chatty\"} hope that helps"), &p); err != nil || p.Summary != "chatty" {
		t.Fatalf("embedded: %v %+v", err, p)
	}

	if err := UnmarshalLoose([]byte("no json here"), &p); err == nil {
		t.Fatalf("expected error for input without JSON")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("no-op truncate: got=%q", got)
	}
	if got := Truncate("0123456789abc", 10); got != "0123456789..." {
		t.Fatalf("truncate: got=%q", got)
	}
	if got := Truncate("anything", 0); got != "anything" {
		t.Fatalf("zero max must be a no-op: got=%q", got)
	}
}

func TestMarshalNoEscape(t *testing.T) {
	out, err := MarshalNoEscape(map[string]string{"s": "<diff> & more"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"s":"<diff> & more"}` {
		t.Fatalf("got=%s", out)
	}
}

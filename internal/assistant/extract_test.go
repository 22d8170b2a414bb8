package assistant

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("bad test payload %q: %v", raw, err)
	}
	return payload
}

func TestExtractKnownShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"text field", `{"text": "x"}`},
		{"content field", `{"content": "x"}`},
		{"choices list", `{"choices": [{"message": {"content": "x"}}]}`},
		{"outputs list", `{"outputs": [{"content": [{"text": "x"}]}]}`},
		{"plain string", `"x"`},
		{"nested output text", `{"outputs": [{"text": "x"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, ok := ExtractText(decode(t, tc.raw))
			if !ok {
				t.Fatalf("shape %s did not match", tc.raw)
			}
			if text != "x" {
				t.Fatalf("got %q, want %q", text, "x")
			}
		})
	}
}

func TestExtractContentBlocksJoined(t *testing.T) {
	payload := decode(t, `{"content": [{"text": "first"}, {"text": "second"}]}`)
	text, ok := ExtractText(payload)
	if !ok {
		t.Fatal("content blocks did not match")
	}
	if text != "first\n\nsecond" {
		t.Fatalf("got %q", text)
	}
}

func TestExtractDeepScanFallback(t *testing.T) {
	payload := decode(t, `{"result": {"inner": {"output_text": "deep"}}}`)
	text, ok := ExtractText(payload)
	if !ok {
		t.Fatal("deep scan did not match")
	}
	if text != "deep" {
		t.Fatalf("got %q", text)
	}
}

func TestExtractNoMatch(t *testing.T) {
	cases := []string{
		`{"status": "ok", "count": 3}`,
		`{}`,
		`[1, 2, 3]`,
		`42`,
		`null`,
	}
	for _, raw := range cases {
		if text, ok := ExtractText(decode(t, raw)); ok {
			t.Fatalf("payload %s unexpectedly matched with %q", raw, text)
		}
	}
}

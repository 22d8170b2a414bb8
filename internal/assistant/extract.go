package assistant

import "strings"

// The proxy's response shape is not fixed: depending on the upstream model
// the text may live under text, content, a choices list or an outputs
// list. Extraction tries a small ordered list of shape matchers and falls
// back to a breadth-first scan for any string field whose name mentions
// text or content.
type matcher func(any) (string, bool)

// Populated in init: several matchers recurse through ExtractText, so a
// package-level composite literal would form an initialization cycle.
var matchers []matcher

func init() {
	matchers = []matcher{
		matchPlainText,
		matchTextField,
		matchContentField,
		matchOutputList,
		matchChoiceList,
		matchDeepScan,
	}
}

// ExtractText pulls a best-effort reply text out of a decoded proxy
// payload. The boolean reports whether any shape matched; callers fall
// back to the stringified raw payload when it did not.
func ExtractText(payload any) (string, bool) {
	for _, match := range matchers {
		if text, ok := match(payload); ok {
			return text, true
		}
	}
	return "", false
}

func matchPlainText(payload any) (string, bool) {
	text, ok := payload.(string)
	return text, ok && text != ""
}

func matchTextField(payload any) (string, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	text, ok := obj["text"].(string)
	return text, ok && text != ""
}

func matchContentField(payload any) (string, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	switch content := obj["content"].(type) {
	case string:
		if content != "" {
			return content, true
		}
	case []any:
		// Content blocks: join the inner texts.
		parts := make([]string, 0, len(content))
		for _, item := range content {
			if text, ok := ExtractText(item); ok {
				parts = append(parts, text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n"), true
		}
	}
	return "", false
}

func matchOutputList(payload any) (string, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	outputs, ok := obj["outputs"].([]any)
	if !ok {
		return "", false
	}
	for _, output := range outputs {
		if text, ok := ExtractText(output); ok {
			return text, true
		}
	}
	return "", false
}

func matchChoiceList(payload any) (string, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	choices, ok := obj["choices"].([]any)
	if !ok {
		return "", false
	}
	for _, choice := range choices {
		choiceObj, ok := choice.(map[string]any)
		if !ok {
			continue
		}
		if message, ok := choiceObj["message"]; ok {
			if text, ok := ExtractText(message); ok {
				return text, true
			}
		}
	}
	return "", false
}

// matchDeepScan walks the payload breadth-first looking for any string
// field whose lower-cased name contains "text" or "content".
func matchDeepScan(payload any) (string, bool) {
	queue := []any{payload}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		switch node := current.(type) {
		case map[string]any:
			if text, ok := node["text"].(string); ok && text != "" {
				return text, true
			}
			if text, ok := node["content"].(string); ok && text != "" {
				return text, true
			}
			for key, value := range node {
				lower := strings.ToLower(key)
				if text, ok := value.(string); ok && text != "" &&
					(strings.Contains(lower, "text") || strings.Contains(lower, "content")) {
					return text, true
				}
				switch value.(type) {
				case map[string]any, []any:
					queue = append(queue, value)
				}
			}
		case []any:
			queue = append(queue, node...)
		}
	}
	return "", false
}

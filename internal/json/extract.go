// Package json provides JSON extraction utilities for parsing LLM responses.
//
// LLMs often return JSON embedded in text, fenced in markdown, or followed by
// commentary. This package pulls the JSON value out of such responses.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

const previewLen = 100

// extractJSON finds and returns the JSON portion of a response string.
// It handles common LLM response patterns:
// 1. Pure JSON response - returns the full response
// 2. JSON wrapped in a markdown code fence, with or without prose around it
// 3. JSON object or array embedded in text - outermost brackets of whichever
//    kind opens first
//
// Uses simple bracket matching, so unbalanced brackets inside strings may
// defeat the embedded case.
func extractJSON(response string) (string, error) {
	response = stripMarkdownCodeBlocks(response)

	if json.Valid([]byte(response)) {
		return response, nil
	}

	for _, span := range candidateSpans(response) {
		if json.Valid([]byte(span)) {
			return span, nil
		}
	}

	return "", fmt.Errorf("failed to extract valid JSON from response: %q", preview(response))
}

// candidateSpans returns the object and array spans of s, ordered by where
// they open.
func candidateSpans(s string) []string {
	type span struct {
		start int
		text  string
	}
	var spans []span
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(s, pair[0])
		end := strings.LastIndex(s, pair[1])
		if start != -1 && end > start {
			spans = append(spans, span{start, s[start : end+1]})
		}
	}
	if len(spans) == 2 && spans[1].start < spans[0].start {
		spans[0], spans[1] = spans[1], spans[0]
	}
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = sp.text
	}
	return out
}

// stripMarkdownCodeBlocks returns the body of the first ``` fence when one is
// present, otherwise the trimmed response.
func stripMarkdownCodeBlocks(response string) string {
	trimmed := strings.TrimSpace(response)

	open := strings.Index(trimmed, "```")
	if open == -1 {
		return trimmed
	}
	body := trimmed[open+3:]
	// Drop the info string ("json", "JSON") on the opening line.
	if nl := strings.IndexByte(body, '\n'); nl != -1 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(strings.TrimPrefix(body, "json"), "JSON")
	}
	if end := strings.Index(body, "```"); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > previewLen {
		return string(r[:previewLen]) + "..."
	}
	return s
}

// ExtractJSONFromResponse extracts and parses JSON from an LLM response.
// T may be a struct, map, or slice type.
func ExtractJSONFromResponse[T any](response string) (T, error) {
	var result T
	jsonStr, err := extractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// ExtractJSON extracts the JSON portion from a response string.
// Returns the raw JSON string suitable for further processing.
func ExtractJSON(response string) (string, error) {
	return extractJSON(response)
}

// IsArray reports whether raw JSON text holds an array.
func IsArray(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), "[")
}

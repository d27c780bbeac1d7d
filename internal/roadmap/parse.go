package roadmap

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"crewline/internal/domain"
)

// Parse decodes generator output into a Roadmap. It tolerates markdown code
// fences, prose around the JSON object and a top-level "roadmap" wrapper.
// Milestones decode strictly: a malformed or untitled milestone is fatal
// since tasks resolve their milestone by position. Tasks decode one by one
// and a task that does not decode keeps its position with Malformed set.
func Parse(text string) (Roadmap, error) {
	var rm Roadmap
	body := extractJSON(text)
	if body == "" || !gjson.Valid(body) {
		return rm, fmt.Errorf("%w: roadmap is not valid JSON", domain.ErrGenerationFailed)
	}
	if wrapped := gjson.Get(body, "roadmap"); wrapped.IsObject() {
		body = wrapped.Raw
	}
	milestones, tasks := gjson.Get(body, "milestones"), gjson.Get(body, "tasks")
	if !milestones.IsArray() && !tasks.IsArray() {
		return rm, fmt.Errorf("%w: roadmap has neither milestones nor tasks", domain.ErrGenerationFailed)
	}
	if milestones.Exists() && milestones.Type != gjson.Null {
		if err := json.Unmarshal([]byte(milestones.Raw), &rm.Milestones); err != nil {
			return rm, fmt.Errorf("%w: decode milestones: %v", domain.ErrGenerationFailed, err)
		}
	}
	if tasks.Exists() && tasks.Type != gjson.Null && !tasks.IsArray() {
		return rm, fmt.Errorf("%w: roadmap tasks is not a list", domain.ErrGenerationFailed)
	}
	for _, raw := range tasks.Array() {
		var t TaskSpec
		if err := json.Unmarshal([]byte(raw.Raw), &t); err != nil {
			t = TaskSpec{Title: raw.Get("title").String(), Malformed: err.Error()}
		}
		rm.Tasks = append(rm.Tasks, t)
	}
	if err := rm.checkMilestones(); err != nil {
		return rm, err
	}
	return rm, nil
}

func (rm Roadmap) checkMilestones() error {
	for i, m := range rm.Milestones {
		if strings.TrimSpace(m.Title) == "" {
			return fmt.Errorf("%w: milestone %d has no title", domain.ErrGenerationFailed, i)
		}
	}
	if len(rm.Milestones) == 0 && len(rm.Tasks) == 0 {
		return fmt.Errorf("%w: roadmap is empty", domain.ErrGenerationFailed)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// extractJSON returns the outermost JSON object in s.
func extractJSON(s string) string {
	s = stripFences(s)
	if gjson.Valid(s) {
		return s
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

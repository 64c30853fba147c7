package generation

import (
	"encoding/json"
	"strings"
)

type videoReply struct {
	TranslatedTitle       string           `json:"translatedTitle"`
	TranslatedDescription string           `json:"translatedDescription"`
	Hashtags              []string         `json:"hashtags"`
	OptimalPostTime       string           `json:"optimalPostTime"`
	CulturalAdvice        *string          `json:"culturalAdvice"`
	Transcript            []TranscriptLine `json:"transcript"`
}

type textReply struct {
	TranslatedText  string   `json:"translatedText"`
	Hashtags        []string `json:"hashtags"`
	OptimalPostTime string   `json:"optimalPostTime"`
}

// ParseVideoContent decodes and validates the model reply for a video
// request. Title and description are required; other fields fall back to
// their defaults.
func ParseVideoContent(raw string) (VideoContent, error) {
	var reply videoReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return VideoContent{}, malformed("reply is not valid JSON: %v", err)
	}

	title := strings.TrimSpace(reply.TranslatedTitle)
	if title == "" {
		return VideoContent{}, malformed("reply is missing translatedTitle")
	}
	description := strings.TrimSpace(reply.TranslatedDescription)
	if description == "" {
		return VideoContent{}, malformed("reply is missing translatedDescription")
	}

	advice := DefaultCulturalAdvice
	if reply.CulturalAdvice != nil {
		advice = strings.TrimSpace(*reply.CulturalAdvice)
	}

	return VideoContent{
		TranslatedTitle:       title,
		TranslatedDescription: description,
		Hashtags:              NormalizeHashtags(reply.Hashtags),
		OptimalPostTime:       postTimeOrDefault(reply.OptimalPostTime),
		CulturalAdvice:        advice,
		Transcript:            normalizeTranscript(reply.Transcript),
	}, nil
}

// ParseTextContent decodes and validates the model reply for a plain-text
// request
func ParseTextContent(raw string) (TextContent, error) {
	var reply textReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return TextContent{}, malformed("reply is not valid JSON: %v", err)
	}

	text := strings.TrimSpace(reply.TranslatedText)
	if text == "" {
		return TextContent{}, malformed("reply is missing translatedText")
	}

	return TextContent{
		TranslatedText:  text,
		Hashtags:        NormalizeHashtags(reply.Hashtags),
		OptimalPostTime: postTimeOrDefault(reply.OptimalPostTime),
	}, nil
}

// NormalizeHashtags drops blank tags, prefixes '#' where missing and keeps at
// most MaxHashtags in their original order. The result is never nil.
func NormalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || tag == "#" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		out = append(out, tag)
		if len(out) == MaxHashtags {
			break
		}
	}
	return out
}

func normalizeTranscript(lines []TranscriptLine) []TranscriptLine {
	out := make([]TranscriptLine, 0, len(lines))
	for _, line := range lines {
		line.English = strings.TrimSpace(line.English)
		line.Japanese = strings.TrimSpace(line.Japanese)
		if line.English == "" && line.Japanese == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func postTimeOrDefault(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return DefaultOptimalPostTime
}

package generation

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt is sent as the system message of every request
const DefaultSystemPrompt = "You are a professional content localization expert for the Japanese market. Always respond with valid JSON."

// Prompt is one chat completion request
type Prompt struct {
	System string
	User   string
}

// PromptConfig controls model selection and prompt wording. It can be
// overridden from a YAML file:
//
//	model: gpt-4o
//	temperature: 0.5
//	system_prompt: "..."
//	platform_notes:
//	  tiktok: "Keep the description under 150 characters."
type PromptConfig struct {
	Model         string              `yaml:"model"`
	Temperature   float32             `yaml:"temperature"`
	SystemPrompt  string              `yaml:"system_prompt"`
	PlatformNotes map[Platform]string `yaml:"platform_notes"`
}

// DefaultPromptConfig returns the built-in prompt settings
func DefaultPromptConfig() *PromptConfig {
	return &PromptConfig{
		Model:        "gpt-4",
		Temperature:  0.7,
		SystemPrompt: DefaultSystemPrompt,
		PlatformNotes: map[Platform]string{
			PlatformYouTube:   "YouTube titles should stay under 60 characters and lead with the hook. Descriptions may use line breaks and a short summary.",
			PlatformTikTok:    "TikTok descriptions are short and casual; put the strongest hashtags first.",
			PlatformInstagram: "Instagram captions can be longer and emoji-friendly; hashtags go at the end.",
		},
	}
}

// LoadPromptConfig reads overrides from path on top of the defaults. Fields
// absent from the file keep their default values. An empty path returns the
// defaults.
func LoadPromptConfig(path string) (*PromptConfig, error) {
	cfg := DefaultPromptConfig()
	if err := cfg.MergeFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFile applies the overrides in the YAML file at path. An empty path is
// a no-op.
func (c *PromptConfig) MergeFile(path string) error {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read prompt config: %w", err)
		}

		var override PromptConfig
		if err := yaml.Unmarshal(data, &override); err != nil {
			return fmt.Errorf("failed to parse prompt config %s: %w", path, err)
		}

		if override.Model != "" {
			c.Model = override.Model
		}
		if override.Temperature != 0 {
			c.Temperature = override.Temperature
		}
		if override.SystemPrompt != "" {
			c.SystemPrompt = override.SystemPrompt
		}
		if c.PlatformNotes == nil {
			c.PlatformNotes = map[Platform]string{}
		}
		for platform, note := range override.PlatformNotes {
			c.PlatformNotes[platform] = note
		}
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("prompt config temperature must be between 0 and 2, got %v", c.Temperature)
	}
	return nil
}

// VideoPrompt builds the prompt for a validated video request
func (c *PromptConfig) VideoPrompt(req VideoRequest) Prompt {
	var b strings.Builder

	fmt.Fprintf(&b, "Localize the following %s video for a Japanese audience.\n\n", platformLabel(req.Platform))
	fmt.Fprintf(&b, "Video URL: %s\n", req.VideoURL)

	if req.Dialect == DialectKansai {
		b.WriteString("Dialect: Kansai-ben. Write the title, description and transcript in natural Kansai dialect " +
			"(e.g. 〜やん, 〜へん, めっちゃ, ほんま) while keeping it readable for viewers from other regions.\n")
	} else {
		b.WriteString("Dialect: standard Japanese (標準語), friendly but natural for social media.\n")
	}

	if note := c.PlatformNotes[req.Platform]; note != "" {
		fmt.Fprintf(&b, "Platform notes: %s\n", note)
	}

	b.WriteString("\nSubtitles:\n")
	b.WriteString(req.Subtitles)
	b.WriteString("\n\n")

	b.WriteString(`Please provide:
1. A catchy Japanese title
2. A Japanese description that keeps the original intent and tone
3. Up to 10 relevant hashtags (Japanese and English where appropriate)
4. The optimal posting time for Japanese viewers of this platform
5. Brief cultural advice on adapting this content for Japan
6. A line-by-line transcript pairing each subtitle line with its Japanese translation

Format your response as JSON:
{
  "translatedTitle": "Japanese title",
  "translatedDescription": "Japanese description",
  "hashtags": ["#hashtag1", "#hashtag2"],
  "optimalPostTime": "Best time to post (e.g. '平日 20:00-22:00 JST')",
  "culturalAdvice": "Advice for the Japanese market",
  "transcript": [{"en": "subtitle line", "ja": "Japanese line"}]
}`)

	return Prompt{System: c.SystemPrompt, User: b.String()}
}

// TextPrompt builds the prompt for a plain-text request
func (c *PromptConfig) TextPrompt(req TextRequest) Prompt {
	user := fmt.Sprintf(`You are a content localization expert specializing in adapting content for the Japanese market.

Original content:
%s

Please provide:
1. A natural Japanese translation that maintains the original tone and intent while being culturally appropriate for Japanese audiences
2. 5-10 relevant Japanese hashtags (include both Japanese and English hashtags if appropriate)
3. The optimal posting time for Japanese social media (consider time zones and engagement patterns)

Format your response as JSON:
{
  "translatedText": "Japanese translation here",
  "hashtags": ["hashtag1", "hashtag2"],
  "optimalPostTime": "Best time to post (e.g. '平日 20:00-22:00 JST')"
}`, req.OriginalText)

	return Prompt{System: c.SystemPrompt, User: user}
}

func platformLabel(p Platform) string {
	switch p {
	case PlatformYouTube:
		return "YouTube"
	case PlatformTikTok:
		return "TikTok"
	case PlatformInstagram:
		return "Instagram"
	default:
		return string(p)
	}
}

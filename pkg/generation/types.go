package generation

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a generation does not exist or belongs to
// another user
var ErrNotFound = errors.New("generation not found")

// Platform is the social network a video is published on
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// Dialect is the Japanese register of the generated copy
type Dialect string

const (
	DialectStandard Dialect = "standard"
	DialectKansai   Dialect = "kansai"
)

// Pipeline identifies which request shape produced a generation
type Pipeline string

const (
	PipelineVideo Pipeline = "video"
	PipelineText  Pipeline = "text"
)

// MaxInputRunes caps subtitles and original text
const MaxInputRunes = 50000

// MaxHashtags caps the hashtags returned and stored per generation
const MaxHashtags = 10

// Defaults for optional fields missing from the model's reply
const (
	DefaultOptimalPostTime = "平日 20:00-22:00 JST"
	DefaultCulturalAdvice  = ""
)

// VideoRequest is the body of POST /api/generate. Field order is the order
// validation errors are reported in.
type VideoRequest struct {
	Platform  Platform `json:"platform" validate:"oneof=youtube tiktok instagram"`
	Dialect   Dialect  `json:"dialect" validate:"oneof=standard kansai"`
	VideoURL  string   `json:"videoUrl" validate:"notblank,http_url,platform_host"`
	Subtitles string   `json:"subtitles" validate:"notblank,max=50000"`
}

// TextRequest is the body of POST /api/generate/text
type TextRequest struct {
	OriginalText string `json:"originalText" validate:"notblank,max=50000"`
}

// TranscriptLine pairs a subtitle line with its Japanese rendering
type TranscriptLine struct {
	English  string `json:"en"`
	Japanese string `json:"ja"`
}

// UnmarshalJSON also accepts the original/translated keys some model replies
// and early records use.
func (l *TranscriptLine) UnmarshalJSON(data []byte) error {
	var raw struct {
		English    string `json:"en"`
		Japanese   string `json:"ja"`
		Original   string `json:"original"`
		Translated string `json:"translated"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l.English, l.Japanese = raw.English, raw.Japanese
	if l.English == "" {
		l.English = raw.Original
	}
	if l.Japanese == "" {
		l.Japanese = raw.Translated
	}
	return nil
}

// VideoContent is the validated model output for a video request
type VideoContent struct {
	TranslatedTitle       string           `json:"translatedTitle"`
	TranslatedDescription string           `json:"translatedDescription"`
	Hashtags              []string         `json:"hashtags"`
	OptimalPostTime       string           `json:"optimalPostTime"`
	CulturalAdvice        string           `json:"culturalAdvice"`
	Transcript            []TranscriptLine `json:"transcript"`
}

// TextContent is the validated model output for a plain-text request
type TextContent struct {
	TranslatedText  string   `json:"translatedText"`
	Hashtags        []string `json:"hashtags"`
	OptimalPostTime string   `json:"optimalPostTime"`
}

// VideoResponse is returned by POST /api/generate. ID is empty when the
// record could not be saved.
type VideoResponse struct {
	ID      string `json:"id"`
	VideoID string `json:"videoId"`
	VideoContent
}

// TextResponse is returned by POST /api/generate/text
type TextResponse struct {
	ID string `json:"id"`
	TextContent
}

// Record is a persisted generation. Records are immutable once written.
type Record struct {
	ID              string           `json:"id"`
	UserID          string           `json:"-"`
	Pipeline        Pipeline         `json:"pipeline"`
	Platform        Platform         `json:"platform,omitempty"`
	Dialect         Dialect          `json:"dialect,omitempty"`
	VideoURL        string           `json:"videoUrl,omitempty"`
	VideoID         string           `json:"videoId,omitempty"`
	OriginalText    string           `json:"originalText"`
	TranslatedTitle string           `json:"translatedTitle,omitempty"`
	TranslatedText  string           `json:"translatedText"`
	Hashtags        []string         `json:"hashtags"`
	OptimalPostTime string           `json:"optimalPostTime"`
	CulturalAdvice  string           `json:"culturalAdvice,omitempty"`
	Transcript      []TranscriptLine `json:"transcript,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// Caller is the authenticated user a generation runs for
type Caller struct {
	UserID string
	Plan   string
}

package generation

import "regexp"

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/watch\?.*v=([^&\n?#]+)`),
}

// ExtractVideoID returns the YouTube video id in rawURL, or "" when there is
// none.
func ExtractVideoID(rawURL string) string {
	for _, pattern := range videoIDPatterns {
		if match := pattern.FindStringSubmatch(rawURL); len(match) > 1 && match[1] != "" {
			return match[1]
		}
	}
	return ""
}

// VideoIDFor returns the video id for a request; only YouTube URLs have one
func VideoIDFor(platform Platform, rawURL string) string {
	if platform != PlatformYouTube {
		return ""
	}
	return ExtractVideoID(rawURL)
}

package extraction

import (
	"strings"

	"stashpad/config"
)

// CountWords counts whitespace-separated words in plain text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ReadingTime estimates reading time in whole minutes at the configured
// words-per-minute rate. Any positive word count reads as at least one
// minute; zero words is zero minutes.
func ReadingTime(wordCount int) int {
	if wordCount <= 0 {
		return 0
	}
	minutes := (wordCount + config.WordsPerMinute - 1) / config.WordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// Analyze fills in word count and reading time from body text.
func Analyze(text string) (words, minutes int) {
	words = CountWords(text)
	return words, ReadingTime(words)
}

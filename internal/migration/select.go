package migration

import (
	"strconv"
	"strings"
)

const answerAll = "all"

// SelectForImport picks the URLs a bulk run extracts. "all" takes every URL.
// A count n below len(urls) takes n URLs spread evenly by stepping through
// the list, so a partial import samples the whole catalog. Any other answer
// takes the first fallback URLs.
func SelectForImport(urls []string, answer string, fallback int) []string {
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == answerAll {
		return urls
	}

	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 {
		return head(urls, fallback)
	}
	if n >= len(urls) {
		return urls
	}

	step := len(urls) / n
	out := make([]string, 0, n)
	for i := 0; i < len(urls) && len(out) < n; i += step {
		out = append(out, urls[i])
	}
	return out
}

func head(urls []string, n int) []string {
	if n <= 0 || n > len(urls) {
		return urls
	}
	return urls[:n]
}

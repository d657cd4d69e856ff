package runner

import (
	"regexp"
	"strconv"
)

var (
	fetchProgressPattern  = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%`)
	encodeProgressPattern = regexp.MustCompile(`Encoding: task \d+ of \d+, (\d+(?:\.\d+)?) %`)
)

// ParseFetchProgress extracts the percentage from a fetcher progress line.
func ParseFetchProgress(line string) (float64, bool) {
	return parsePercent(fetchProgressPattern, line)
}

// ParseEncodeProgress extracts the percentage from an encoder progress line.
func ParseEncodeProgress(line string) (float64, bool) {
	return parsePercent(encodeProgressPattern, line)
}

func parsePercent(pattern *regexp.Regexp, line string) (float64, bool) {
	m := pattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil || pct < 0 {
		return 0, false
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

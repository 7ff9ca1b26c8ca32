package utils

import (
	"log"
	"strings"
)

// LogMultiline writes msg line by line through logger so every line
// carries the log prefix, framed by banner lines.
func LogMultiline(logger *log.Logger, msg string) {
	banner := strings.Repeat("=", 80)
	logger.Println(banner)
	for _, line := range strings.Split(strings.TrimRight(msg, "\n"), "\n") {
		logger.Println(line)
	}
	logger.Println(banner)
}

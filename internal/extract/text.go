package extract

import (
	"fmt"
	"strings"
)

func extractText(data []byte) (string, error) {
	text := strings.ReplaceAll(string(data), "\x00", "")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("file is empty")
	}
	return text, nil
}

package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	defaultLogLines = 100
	maxLogLines     = 10000
	maxLogLineBytes = 1024 * 1024
)

// LogHandlers serves the tail of the rotating log file
type LogHandlers struct {
	logFile string
	log     zerolog.Logger
}

// NewLogHandlers creates a new log handlers instance.
// logFile is empty when file logging is disabled.
func NewLogHandlers(logFile string, log zerolog.Logger) *LogHandlers {
	return &LogHandlers{
		logFile: logFile,
		log:     log.With().Str("handler", "logs").Logger(),
	}
}

// LogContentResponse represents log content
type LogContentResponse struct {
	Lines  []string `json:"lines"`
	Total  int      `json:"total"`
	Status string   `json:"status"`
}

// HandleGetLogs handles GET /api/system/logs?lines=N&level=error&search=text
func (h *LogHandlers) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	if h.logFile == "" {
		http.Error(w, "File logging is disabled", http.StatusNotFound)
		return
	}

	lines := defaultLogLines
	if linesParam := r.URL.Query().Get("lines"); linesParam != "" {
		parsed, err := strconv.Atoi(linesParam)
		if err != nil || parsed < 1 {
			http.Error(w, "lines must be a positive integer", http.StatusBadRequest)
			return
		}
		lines = min(parsed, maxLogLines)
	}
	level := r.URL.Query().Get("level")
	search := r.URL.Query().Get("search")

	logLines, err := tailFile(h.logFile, lines)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logLines = []string{}
		} else {
			h.log.Error().Err(err).Msg("Failed to read log file")
			http.Error(w, "Failed to read logs", http.StatusInternalServerError)
			return
		}
	}

	response := LogContentResponse{
		Lines:  filterLogs(logLines, level, search),
		Total:  len(logLines),
		Status: "ok",
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// tailFile returns the last n lines of path
func tailFile(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, n)
	count := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLogLineBytes)
	for scanner.Scan() {
		ring[count%n] = scanner.Text()
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}

	if count <= n {
		return ring[:count], nil
	}
	start := count % n
	return append(ring[start:], ring[:start]...), nil
}

// filterLogs filters log lines by level and search term
func filterLogs(lines []string, level string, search string) []string {
	if level == "" && search == "" {
		return lines
	}

	filtered := make([]string, 0)
	search = strings.ToLower(search)
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if level != "" && !lineMatchesLevel(line, level) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(line), search) {
			continue
		}
		filtered = append(filtered, line)
	}
	return filtered
}

// lineMatchesLevel checks a zerolog JSON line ({"level":"error",...})
func lineMatchesLevel(line string, level string) bool {
	var entry struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal([]byte(line), &entry); err == nil && entry.Level != "" {
		return strings.EqualFold(entry.Level, level)
	}
	return strings.Contains(strings.ToUpper(line), strings.ToUpper(level))
}

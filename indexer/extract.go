package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// emotionMarker matches the embedded note marker, e.g. "emotion: joy (0.8)".
var emotionMarker = regexp.MustCompile(`(?mi)^emotion:\s*([a-z]+)\s*\(([0-9.]+)\)\s*$`)

// listModuleFiles returns the module's source files sorted by name.
// A missing module directory simply yields no items.
func listModuleFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func relSource(dir, path, fragment string) string {
	src := filepath.Join(filepath.Base(dir), filepath.Base(path))
	if fragment != "" {
		src += "#" + fragment
	}
	return src
}

// extractPerFile yields one item per file, content taken whole.
// Used for identity components, where each file is one atomic piece.
func extractPerFile(importance float64) Extractor {
	return func(dir string) ([]Item, error) {
		files, err := listModuleFiles(dir)
		if err != nil {
			return nil, err
		}
		var items []Item
		for _, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			content := strings.TrimSpace(string(data))
			if content == "" {
				continue
			}
			items = append(items, Item{
				Source:     relSource(dir, path, ""),
				Content:    content,
				Importance: importance,
			})
		}
		return items, nil
	}
}

// extractNotes yields one item per note file and parses the embedded
// emotion/intensity marker into metadata, stripping it from the content.
func extractNotes(dir string) ([]Item, error) {
	files, err := listModuleFiles(dir)
	if err != nil {
		return nil, err
	}
	var items []Item
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}

		item := Item{
			Source:     relSource(dir, path, ""),
			Content:    content,
			Importance: 0.5,
		}
		if m := emotionMarker.FindStringSubmatch(content); m != nil {
			item.Emotion = strings.ToLower(m[1])
			if v, err := strconv.ParseFloat(m[2], 64); err == nil && v >= 0 && v <= 1 {
				item.EmotionIntensity = v
			}
			item.Content = strings.TrimSpace(emotionMarker.ReplaceAllString(content, ""))
		}
		items = append(items, item)
	}
	return items, nil
}

// extractHeaderBlocks splits "##"-header-delimited files into one item
// per header block. Episodic, semantic and document sources all use this
// layout.
func extractHeaderBlocks(importance float64) Extractor {
	return func(dir string) ([]Item, error) {
		files, err := listModuleFiles(dir)
		if err != nil {
			return nil, err
		}
		var items []Item
		for _, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}

			blockNum := 0
			var header string
			var body []string
			flush := func() {
				content := strings.TrimSpace(strings.Join(body, "\n"))
				if content == "" {
					return
				}
				if header != "" {
					content = header + "\n" + content
				}
				items = append(items, Item{
					Source:     relSource(dir, path, fmt.Sprintf("block%d", blockNum)),
					Content:    content,
					Importance: importance,
				})
				blockNum++
			}

			for _, line := range strings.Split(string(data), "\n") {
				if strings.HasPrefix(line, "## ") {
					flush()
					header = strings.TrimSpace(line)
					body = body[:0]
					continue
				}
				body = append(body, line)
			}
			flush()
		}
		return items, nil
	}
}

// extractBullets splits bullet-list files into one item per bullet.
// Used for people facts, associative links and the working-focus list.
func extractBullets(importance float64) Extractor {
	return func(dir string) ([]Item, error) {
		files, err := listModuleFiles(dir)
		if err != nil {
			return nil, err
		}
		var items []Item
		for _, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			bulletNum := 0
			for _, line := range strings.Split(string(data), "\n") {
				trimmed := strings.TrimSpace(line)
				if !strings.HasPrefix(trimmed, "- ") && !strings.HasPrefix(trimmed, "* ") {
					continue
				}
				content := strings.TrimSpace(trimmed[2:])
				if content == "" {
					continue
				}
				items = append(items, Item{
					Source:     relSource(dir, path, fmt.Sprintf("item%d", bulletNum)),
					Content:    content,
					Importance: importance,
				})
				bulletNum++
			}
		}
		return items, nil
	}
}

// extractTranscripts splits role-marked conversation logs into one item
// per query/response exchange.
func extractTranscripts(dir string) ([]Item, error) {
	files, err := listModuleFiles(dir)
	if err != nil {
		return nil, err
	}
	var items []Item
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		exchangeNum := 0
		var userLines, assistantLines []string
		inAssistant := false
		flush := func() {
			user := strings.TrimSpace(strings.Join(userLines, "\n"))
			assistant := strings.TrimSpace(strings.Join(assistantLines, "\n"))
			if user == "" && assistant == "" {
				return
			}
			var parts []string
			if user != "" {
				parts = append(parts, "User: "+user)
			}
			if assistant != "" {
				parts = append(parts, "Assistant: "+assistant)
			}
			items = append(items, Item{
				Source:     relSource(dir, path, fmt.Sprintf("exchange%d", exchangeNum)),
				Content:    strings.Join(parts, "\n"),
				Importance: 0.3,
			})
			exchangeNum++
		}

		for _, line := range strings.Split(string(data), "\n") {
			trimmed := strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(trimmed, "User:"):
				if inAssistant {
					flush()
					userLines = userLines[:0]
					assistantLines = assistantLines[:0]
					inAssistant = false
				}
				userLines = append(userLines, strings.TrimSpace(strings.TrimPrefix(trimmed, "User:")))
			case strings.HasPrefix(trimmed, "Assistant:"):
				inAssistant = true
				assistantLines = append(assistantLines, strings.TrimSpace(strings.TrimPrefix(trimmed, "Assistant:")))
			default:
				if trimmed == "" {
					continue
				}
				if inAssistant {
					assistantLines = append(assistantLines, trimmed)
				} else if len(userLines) > 0 {
					userLines = append(userLines, trimmed)
				}
			}
		}
		flush()
	}
	return items, nil
}

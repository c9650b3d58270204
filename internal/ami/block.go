package ami

import (
	"strings"
)

// A block is one AMI message: Key: Value lines terminated by a blank line.
// Keys are lower-cased so lookups are case-insensitive per the protocol.
type block map[string]string

func (b block) get(key string) string {
	return b[strings.ToLower(key)]
}

func (b block) has(key string) bool {
	_, ok := b[strings.ToLower(key)]
	return ok
}

// parseBlock turns raw message lines into a block. Lines without a colon
// are ignored; the PBX greeting and stray banners carry no key-value data.
func parseBlock(lines []string) block {
	b := make(block, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r\n")
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		b[key] = value
	}
	return b
}

// splitBlocks parses a full payload in which several blocks may appear
// separated by blank lines, as rawman responses deliver them.
func splitBlocks(payload string) []block {
	normalized := strings.ReplaceAll(payload, "\r\n", "\n")
	var blocks []block
	var lines []string
	flush := func() {
		if len(lines) == 0 {
			return
		}
		if b := parseBlock(lines); len(b) > 0 {
			blocks = append(blocks, b)
		}
		lines = nil
	}
	for _, line := range strings.Split(normalized, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		lines = append(lines, line)
	}
	flush()
	return blocks
}

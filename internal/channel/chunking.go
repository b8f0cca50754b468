package channel

import (
	"strings"
	"unicode/utf8"
)

const fenceClose = "\n```"

// ChunkConfig controls how outbound text is split when it exceeds a
// platform's maximum message length.
type ChunkConfig struct {
	// MaxLength is the maximum number of bytes per chunk.
	// A value <= 0 means no splitting.
	MaxLength int

	// PreserveBlocks keeps fenced code blocks renderable across chunks: a
	// block cut at a chunk boundary is closed at the end of the chunk and
	// reopened, with its language tag, at the start of the next one.
	PreserveBlocks bool
}

// SplitText breaks text into chunks of at most cfg.MaxLength bytes, cutting
// at line boundaries when possible and never inside a UTF-8 sequence.
// Blank text yields no chunks.
func SplitText(text string, cfg ChunkConfig) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if cfg.MaxLength <= 0 || len(text) <= cfg.MaxLength {
		return []string{text}
	}

	s := &splitter{max: cfg.MaxLength, preserve: cfg.PreserveBlocks && cfg.MaxLength >= 32}
	for _, line := range strings.Split(text, "\n") {
		s.addLine(line)
	}
	s.finish()
	return s.chunks
}

type splitter struct {
	max      int
	preserve bool
	chunks   []string
	cur      strings.Builder

	// fence is the opening line of the code block being copied, "" outside.
	fence string
}

func (s *splitter) inBlock() bool { return s.preserve && s.fence != "" }

// header is the size of the reopened fence at the start of a chunk.
func (s *splitter) header() int {
	if s.inBlock() {
		return len(s.fence) + 1
	}
	return 0
}

func (s *splitter) limit(closing bool) int {
	if s.inBlock() && !closing {
		return s.max - len(fenceClose)
	}
	return s.max
}

func (s *splitter) addLine(line string) {
	isFence := strings.HasPrefix(strings.TrimSpace(line), "```")
	closing := isFence && s.fence != ""
	limit := s.limit(closing)
	if s.preserve && isFence && !closing {
		// Leave room to close the block this line opens.
		limit = s.max - len(fenceClose)
	}

	if s.cur.Len()+len(line)+1 > limit && s.cur.Len() > s.header() {
		s.flush()
	}

	// A line that cannot fit even in a fresh chunk is cut into pieces.
	for room := limit - s.cur.Len() - 1; len(line) > room && room > 0; room = limit - s.cur.Len() - 1 {
		cut := runeBoundary(line, room)
		s.cur.WriteString(line[:cut])
		s.cur.WriteByte('\n')
		line = line[cut:]
		s.flush()
	}

	s.cur.WriteString(line)
	s.cur.WriteByte('\n')

	if !isFence {
		return
	}
	if s.fence != "" {
		s.fence = ""
		return
	}
	opener := strings.TrimSpace(line)
	if len(opener) < s.max/4 {
		s.fence = opener
	} else {
		s.fence = "```"
	}
}

// flush ends the current chunk and, inside a code block, starts the next
// one with the reopened fence.
func (s *splitter) flush() {
	body := strings.TrimRight(s.cur.String(), "\n")
	s.cur.Reset()
	if s.inBlock() {
		body += fenceClose
	}
	if strings.TrimSpace(body) != "" {
		s.chunks = append(s.chunks, body)
	}
	if s.inBlock() {
		s.cur.WriteString(s.fence)
		s.cur.WriteByte('\n')
	}
}

func (s *splitter) finish() {
	if s.cur.Len() <= s.header() {
		return
	}
	body := strings.TrimRight(s.cur.String(), "\n")
	s.cur.Reset()
	if strings.TrimSpace(body) != "" {
		s.chunks = append(s.chunks, body)
	}
}

// runeBoundary returns the largest n' <= n that does not split a rune.
func runeBoundary(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	if n == 0 {
		// A single rune wider than the budget: emit it whole.
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return n
}

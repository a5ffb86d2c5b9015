package crawl

import (
	"regexp"
	"strings"
	"unicode"
)

// ChunkerConfig controls how a crawled page's text is split into chunks
// before embedding. Method "semantic" (the default) is headings-first
// with a sliding-window fallback for oversized sections; "sentence" and
// "fixed" are simpler strategies kept for sources whose content doesn't
// suit semantic splitting (changelogs, API references with no heading
// structure).
type ChunkerConfig struct {
	Method     string // semantic, sentence, fixed
	TargetSize int    // target words per chunk
	MaxSize    int    // max words before a forced split
	Overlap    int    // sliding-window overlap, in words
}

func (c ChunkerConfig) withDefaults() ChunkerConfig {
	if c.TargetSize <= 0 {
		c.TargetSize = 512
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 1024
	}
	if c.Overlap < 0 {
		c.Overlap = 50
	}
	if c.Method == "" {
		c.Method = "semantic"
	}
	return c
}

// textChunk is one piece of chunked page text, pre-embedding.
type textChunk struct {
	Text    string
	Ordinal int
	Heading string
	HasCode bool
}

// chunker splits page text by section boundaries (headings first) and
// falls back to a sentence sliding window for sections that exceed
// MaxSize, or whole documents with no heading structure at all.
type chunker struct {
	config ChunkerConfig
}

func newChunker(config ChunkerConfig) *chunker {
	return &chunker{config: config.withDefaults()}
}

func (c *chunker) Chunk(text string) []textChunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	switch c.config.Method {
	case "fixed":
		return c.chunkFixed(text)
	case "sentence":
		return c.chunkSentence(text)
	default:
		return c.chunkSemantic(text)
	}
}

// ============================================================================
// Fixed chunking: a flat sliding window over words.
// ============================================================================

func (c *chunker) chunkFixed(text string) []textChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var chunks []textChunk
	for i := 0; i < len(words); {
		end := min(i+c.config.TargetSize, len(words))
		chunks = append(chunks, textChunk{Text: strings.Join(words[i:end], " "), Ordinal: len(chunks)})
		if end >= len(words) {
			break
		}
		i += step(c.config.TargetSize, c.config.Overlap)
	}
	return chunks
}

// ============================================================================
// Sentence chunking: group sentences up to TargetSize, splitting
// oversized sentences by word count.
// ============================================================================

func (c *chunker) chunkSentence(text string) []textChunk {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []textChunk
	var current []string
	words := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, textChunk{Text: strings.Join(current, " "), Ordinal: len(chunks)})
		current, words = nil, 0
	}

	for _, s := range sentences {
		sw := len(strings.Fields(s))
		if sw > c.config.MaxSize {
			flush()
			chunks = append(chunks, c.splitLongSentence(s, len(chunks))...)
			continue
		}
		if words+sw > c.config.MaxSize && words > 0 {
			flush()
		}
		current = append(current, s)
		words += sw
		if words >= c.config.TargetSize {
			flush()
		}
	}
	flush()
	return chunks
}

func (c *chunker) splitLongSentence(sentence string, startOrdinal int) []textChunk {
	words := strings.Fields(sentence)
	var chunks []textChunk
	for i := 0; i < len(words); {
		end := min(i+c.config.TargetSize, len(words))
		chunks = append(chunks, textChunk{Text: strings.Join(words[i:end], " "), Ordinal: startOrdinal + len(chunks)})
		if end >= len(words) {
			break
		}
		i += step(c.config.TargetSize, c.config.Overlap)
	}
	return chunks
}

// ============================================================================
// Semantic chunking: headings delimit sections; each section is emitted
// as its own chunk (prefixed with its heading for retrieval context)
// unless it exceeds MaxSize, in which case it falls back to a sentence
// sliding window.
// ============================================================================

var headingPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
var codeFencePattern = regexp.MustCompile("(?s)```.*?```")

func (c *chunker) chunkSemantic(text string) []textChunk {
	sections := splitSections(text)
	var chunks []textChunk

	for _, sec := range sections {
		words := len(strings.Fields(sec.body))
		hasCode := codeFencePattern.MatchString(sec.body)

		if words <= c.config.MaxSize {
			content := sec.body
			if sec.heading != "" {
				content = "[Section: " + sec.heading + "] " + content
			}
			chunks = append(chunks, textChunk{Text: strings.TrimSpace(content), Ordinal: len(chunks), Heading: sec.heading, HasCode: hasCode})
			continue
		}

		// Sliding-window fallback for an oversized section.
		for _, tc := range c.chunkSentence(sec.body) {
			content := tc.Text
			if sec.heading != "" {
				content = "[Section: " + sec.heading + "] " + content
			}
			chunks = append(chunks, textChunk{Text: content, Ordinal: len(chunks), Heading: sec.heading, HasCode: hasCode})
		}
	}

	if c.config.Overlap > 0 {
		chunks = addOverlap(chunks, c.config.Overlap)
	}
	for i := range chunks {
		chunks[i].Ordinal = i
	}
	return chunks
}

type section struct {
	heading string
	body    string
}

// splitSections breaks text at "# "-style heading lines (the rendering
// parsePage produces from <h1>-<h6>), carrying each heading's text
// forward as the section's label. Text with no headings at all becomes
// a single unlabeled section.
func splitSections(text string) []section {
	locs := headingPattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return []section{{body: text}}
	}

	var sections []section
	if locs[0][0] > 0 {
		if body := strings.TrimSpace(text[:locs[0][0]]); body != "" {
			sections = append(sections, section{body: body})
		}
	}
	for i, loc := range locs {
		heading := text[loc[4]:loc[5]]
		bodyStart := loc[1]
		bodyEnd := len(text)
		if i+1 < len(locs) {
			bodyEnd = locs[i+1][0]
		}
		body := strings.TrimSpace(text[bodyStart:bodyEnd])
		if body == "" {
			continue
		}
		sections = append(sections, section{heading: strings.TrimSpace(heading), body: body})
	}
	return sections
}

func addOverlap(chunks []textChunk, overlap int) []textChunk {
	if len(chunks) <= 1 {
		return chunks
	}
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1].Text)
		if len(prevWords) == 0 {
			continue
		}
		n := min(overlap, len(prevWords))
		tail := strings.Join(prevWords[len(prevWords)-n:], " ")
		if strings.HasPrefix(tail, "[Section:") {
			continue
		}
		chunks[i].Text = "[...] " + tail + "\n\n" + chunks[i].Text
	}
	return chunks
}

// ============================================================================
// Sentence splitting, shared by every strategy.
// ============================================================================

var abbreviations = map[string]bool{
	"mr.": true, "mrs.": true, "ms.": true, "dr.": true, "prof.": true,
	"inc.": true, "ltd.": true, "corp.": true,
	"etc.": true, "e.g.": true, "i.e.": true,
	"vs.": true, "v.": true,
	"st.": true, "ave.": true, "no.": true, "vol.": true,
}

func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var sentences []string
	var current strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentence := strings.TrimSpace(current.String())
		if sentence == "" || abbreviations[strings.ToLower(lastWord(sentence))] {
			continue
		}
		sentences = append(sentences, sentence)
		current.Reset()
	}
	if remaining := strings.TrimSpace(current.String()); remaining != "" {
		sentences = append(sentences, remaining)
	}
	return sentences
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func step(target, overlap int) int {
	s := target - overlap
	if s <= 0 {
		s = target / 2
	}
	if s <= 0 {
		s = 1
	}
	return s
}

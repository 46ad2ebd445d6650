package extract

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"redact-backend/internal/classify"
)

var slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// pptxExtractor emits each slide's paragraphs in slide-number order, with a
// blank line between slides.
type pptxExtractor struct{}

func (pptxExtractor) Extract(_ context.Context, data []byte) (Result, error) {
	c, err := openContainer(data)
	if err != nil {
		return Result{}, failure(classify.StrategyPPTX, ReasonCorrupt, err)
	}

	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for name := range c.parts {
		m := slidePart.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: n, name: name})
	}
	if len(slides) == 0 {
		if !c.has("ppt/presentation.xml") {
			return Result{}, failure(classify.StrategyPPTX, ReasonMissingPart, errors.New("ppt/presentation.xml not found"))
		}
		return Result{Strategy: classify.StrategyPPTX}, nil
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	texts := make([]string, 0, len(slides))
	for _, s := range slides {
		raw, err := c.read(s.name)
		if err != nil {
			return Result{}, failure(classify.StrategyPPTX, ReasonCorrupt, err)
		}
		text, err := paragraphText(raw, true)
		if err != nil {
			return Result{}, failure(classify.StrategyPPTX, ReasonCorrupt, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			texts = append(texts, text)
		}
	}
	return Result{
		Text:     strings.Join(texts, "\n\n"),
		Strategy: classify.StrategyPPTX,
		Slides:   len(slides),
	}, nil
}

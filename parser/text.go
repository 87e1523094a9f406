package parser

import "context"

// TextParser handles plain-text resumes.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "text"} }

func (p *TextParser) Extract(ctx context.Context, data []byte) (string, error) {
	return string(data), nil
}

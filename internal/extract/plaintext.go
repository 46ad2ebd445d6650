package extract

import (
	"bytes"
	"context"
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"redact-backend/internal/classify"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// plainText decodes txt, md and csv without structural parsing.
type plainText struct{}

func (plainText) Extract(_ context.Context, data []byte) (Result, error) {
	res := Result{Strategy: classify.StrategyPlainText}

	switch {
	case bytes.HasPrefix(data, bomUTF8):
		data = data[len(bomUTF8):]
	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		text, err := decode(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data)
		if err != nil {
			return Result{}, failure(classify.StrategyPlainText, ReasonUndecodable, err)
		}
		res.Text = text
		res.Encoding = "utf-16"
		return res, nil
	}

	if bytes.IndexByte(data, 0) >= 0 {
		return Result{}, failure(classify.StrategyPlainText, ReasonUndecodable, errors.New("binary content"))
	}

	if utf8.Valid(data) {
		res.Text = string(data)
		res.Encoding = "utf-8"
		return res, nil
	}

	text, err := decode(charmap.ISO8859_1, data)
	if err != nil {
		return Result{}, failure(classify.StrategyPlainText, ReasonUndecodable, err)
	}
	res.Text = text
	res.Encoding = "latin-1"
	return res, nil
}

func decode(enc encoding.Encoding, data []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

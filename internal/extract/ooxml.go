package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// maxPartBytes bounds a single decompressed container part.
const maxPartBytes = 64 << 20

var errPartMissing = errors.New("part not found")

type container struct {
	parts map[string]*zip.File
}

func openContainer(data []byte) (*container, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	c := &container{parts: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		c.parts[strings.TrimPrefix(strings.ReplaceAll(f.Name, "\\", "/"), "/")] = f
	}
	return c, nil
}

func (c *container) read(name string) ([]byte, error) {
	f, ok := c.parts[strings.TrimPrefix(name, "/")]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, errPartMissing)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	raw, err := io.ReadAll(io.LimitReader(rc, maxPartBytes+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxPartBytes {
		return nil, fmt.Errorf("%s: part exceeds %d bytes", name, maxPartBytes)
	}
	return raw, nil
}

func (c *container) has(name string) bool {
	_, ok := c.parts[name]
	return ok
}

// relationships maps relationship IDs to part names resolved against base.
func (c *container) relationships(relsPart, base string) (map[string]string, error) {
	raw, err := c.read(relsPart)
	if err != nil {
		return nil, err
	}
	var rels struct {
		Items []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if err := xml.Unmarshal(raw, &rels); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rels.Items))
	for _, r := range rels.Items {
		target := r.Target
		if strings.HasPrefix(target, "/") {
			target = strings.TrimPrefix(target, "/")
		} else {
			target = path.Join(base, target)
		}
		out[r.ID] = target
	}
	return out, nil
}

// paragraphText walks WordprocessingML or DrawingML and returns the text of
// its runs, one line per paragraph. Only text elements contribute, so field
// codes and properties are skipped. A non-strict walk tolerates malformed
// markup and is used by fallback paths.
func paragraphText(raw []byte, strict bool) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	if !strict {
		dec.Strict = false
		dec.AutoClose = xml.HTMLAutoClose
		dec.Entity = xml.HTMLEntity
	}

	var b strings.Builder
	inText, inTabStops := 0, 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if strict {
				return "", err
			}
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText++
			case "tabs", "tabLst":
				inTabStops++
			case "tab":
				if inTabStops == 0 {
					b.WriteByte('\t')
				}
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				if inText > 0 {
					inText--
				}
			case "tabs", "tabLst":
				if inTabStops > 0 {
					inTabStops--
				}
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText > 0 {
				b.Write(t)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

package charmap

import (
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"
)

// File is the on-disk shape of an external table file.
type File struct {
	JIS         []JISEntry        `json:"jis_x_0213"`
	VariantKana map[string]string `json:"variant_kana"`
}

// JISEntry is one JIS X 0213 cell with its character and optional gaiji
// description.
type JISEntry struct {
	Plane       int    `json:"plane"`
	Row         int    `json:"row"`
	Cell        int    `json:"cell"`
	Char        string `json:"char"`
	Description string `json:"description,omitempty"`
}

// Load builds tables from the built-in data plus the table file at path.
// An empty path yields the built-in tables only.
func Load(path string, opts ...Option) (*Tables, error) {
	if path == "" {
		return New(opts...), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("charmap: read %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("charmap: parse %s: %w", path, err)
	}

	fileOpts, err := f.Options()
	if err != nil {
		return nil, fmt.Errorf("charmap: %s: %w", path, err)
	}
	return New(append(fileOpts, opts...)...), nil
}

// Options converts the file entries into table options.
func (f *File) Options() ([]Option, error) {
	opts := make([]Option, 0, len(f.JIS)+len(f.VariantKana))
	for i, e := range f.JIS {
		r, size := utf8.DecodeRuneInString(e.Char)
		if r == utf8.RuneError || size != len(e.Char) {
			return nil, fmt.Errorf("jis entry %d: char %q is not a single code point", i, e.Char)
		}
		code := JISCode{Plane: e.Plane, Row: e.Row, Cell: e.Cell}
		if code.Plane < 1 || code.Plane > 2 || code.Row < 1 || code.Row > 94 || code.Cell < 1 || code.Cell > 94 {
			return nil, fmt.Errorf("jis entry %d: invalid code %d-%d-%d", i, e.Plane, e.Row, e.Cell)
		}
		opts = append(opts, WithJIS(code, r, e.Description))
	}
	for k, v := range f.VariantKana {
		r, size := utf8.DecodeRuneInString(k)
		if r == utf8.RuneError || size != len(k) || v == "" {
			return nil, fmt.Errorf("variant kana %q: invalid entry", k)
		}
		opts = append(opts, WithVariantKana(r, v))
	}
	return opts, nil
}

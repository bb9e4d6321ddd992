package mcpserver

// SegmentFormat describes the JSON document returned by read_book with
// format=json and written to book/<id>/content.json.
const SegmentFormat = `# Converted Book Format

A converted book is a JSON object:

` + "```" + `json
{
  "book":     { "id": "000127", "title": "羅生門", "contributors": [...], ... },
  "checksum": "fingerprint of the source archive and mapping tables",
  "header":   [ <segment>, ... ],
  "body":     [ <segment>, ... ],
  "colophon": [ <segment>, ... ],
  "warnings": [ { "kind": "unterminated_block", "section": "body", "line": 12, "detail": "..." } ]
}
` + "```" + `

The header is the title block up to the first empty line, the colophon starts at
the "底本：" line, and the body is everything in between. Concatenating the text
of every segment of a section in order gives its reading text.

## Segments

Every segment has a ` + "`type`" + `. The remaining fields depend on it:

| type | fields |
|---|---|
| text | text |
| ruby | base, reading, explicit (true when the base was delimited with ｜) |
| emphasis | kind (dot, line, bold, italic), style (sesame, wave, ...), side (right, left), children |
| heading | style (normal, same_line, window), size (large, medium, small), children |
| indent | style (plain, bottom, raised), level, wrap, children |
| center | children |
| page_break | kind (new_page, new_signature, new_spread, new_column) |
| kunten | kind (one_two, upper_lower, first_second, re, okurigana), order, re, reading, attached_to |
| warichu | text, children |
| gaiji | resolved, char (when resolved), raw (the original notation) |
| caption | children |
| image | path (figure file name, fetch with get_figure), alt, raw |
| unknown | raw (an annotation kept verbatim) |

## Rules

1. Line breaks are text segments containing "\n".
2. Nesting always closes in reverse order of opening. A block left open at the
   end of a section is closed there and reported as an unterminated_block warning.
3. Unresolvable external characters keep their notation in raw and have
   resolved=false. Unknown annotations are never dropped.
4. Warning lines are 1-based within their section.
`

package chunker

import "strings"

// defaultSection is the heading attributed to text before the first
// markdown heading.
const defaultSection = "Introduction"

// sectionMark records a markdown heading and the byte offset where its
// line begins.
type sectionMark struct {
	offset  int
	heading string
}

// scanSections finds every markdown heading line in content and returns
// marks ordered by byte offset. Heading text is the line with leading '#'
// runs and surrounding whitespace stripped.
func scanSections(content string) []sectionMark {
	var marks []sectionMark

	offset := 0
	for _, line := range strings.SplitAfter(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			if heading != "" {
				marks = append(marks, sectionMark{offset: offset, heading: heading})
			}
		}
		offset += len(line)
	}

	return marks
}

// sectionAt returns the heading in effect at the given byte offset.
func sectionAt(marks []sectionMark, offset int) string {
	section := defaultSection
	for _, mark := range marks {
		if mark.offset > offset {
			break
		}
		section = mark.heading
	}
	return section
}

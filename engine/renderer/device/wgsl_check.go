package device

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	vertexEntryRegex   = regexp.MustCompile(`@vertex\s+fn\s+(\w+)`)
	fragmentEntryRegex = regexp.MustCompile(`@fragment\s+fn\s+(\w+)`)
)

// checkWGSL performs the structural checks shared by both backends: the source is
// non-empty, brackets balance outside comments, and the stage declares its entry
// point. The returned error text is the compile log.
func checkWGSL(src StageSource) error {
	if strings.TrimSpace(src.Code) == "" {
		return fmt.Errorf("%s: empty source", src.Path)
	}

	code := stripWGSLComments(src.Code)
	if err := checkBrackets(src.Path, code); err != nil {
		return err
	}

	switch src.Stage {
	case StageVertex:
		if !vertexEntryRegex.MatchString(code) {
			return fmt.Errorf("%s: no @vertex entry point", src.Path)
		}
	case StageFragment:
		if !fragmentEntryRegex.MatchString(code) {
			return fmt.Errorf("%s: no @fragment entry point", src.Path)
		}
	case StageGeometry:
		if vertexEntryRegex.MatchString(code) || fragmentEntryRegex.MatchString(code) {
			return fmt.Errorf("%s: geometry library must not declare entry points", src.Path)
		}
	}
	return nil
}

// EntryPoint returns the name of the entry function of the given stage, or "".
func EntryPoint(code string, stage Stage) string {
	code = stripWGSLComments(code)
	var m []string
	switch stage {
	case StageVertex:
		m = vertexEntryRegex.FindStringSubmatch(code)
	case StageFragment:
		m = fragmentEntryRegex.FindStringSubmatch(code)
	}
	if m == nil {
		return ""
	}
	return m[1]
}

func checkBrackets(path, code string) error {
	type open struct {
		ch   byte
		line int
	}
	closing := map[byte]byte{')': '(', ']': '[', '}': '{'}
	var stack []open
	line := 1
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch c {
		case '\n':
			line++
		case '(', '[', '{':
			stack = append(stack, open{c, line})
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1].ch != closing[c] {
				return fmt.Errorf("%s:%d: unexpected '%c'", path, line, c)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return fmt.Errorf("%s:%d: unclosed '%c'", path, top.line, top.ch)
	}
	return nil
}

// stripWGSLComments blanks out // and nested /* */ comments, keeping newlines so
// reported line numbers match the original source.
func stripWGSLComments(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))
	depth := 0
	for i := 0; i < len(src); i++ {
		c := src[i]
		if depth == 0 && c == '/' && i+1 < len(src) && src[i+1] == '/' {
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i < len(src) {
				sb.WriteByte('\n')
			}
			continue
		}
		if c == '/' && i+1 < len(src) && src[i+1] == '*' {
			depth++
			i++
			continue
		}
		if depth > 0 && c == '*' && i+1 < len(src) && src[i+1] == '/' {
			depth--
			i++
			continue
		}
		if depth > 0 {
			if c == '\n' {
				sb.WriteByte('\n')
			}
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

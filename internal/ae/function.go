package ae

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/paveg/idaframe/internal/errors"
)

// Function is a Python function shipped to the AE runtime: its name and the
// source text defining it. Source may hold a whole module; only the named def
// block and the module's top-level imports are shipped.
type Function struct {
	Name   string
	Source string
	Path   string // read at synthesis time when Source is empty
}

// NewFunction creates a Function from in-memory source text.
func NewFunction(name, source string) Function {
	return Function{Name: name, Source: source}
}

// FunctionFromFile creates a Function whose source is read from path when it is synthesized.
func FunctionFromFile(path, name string) Function {
	return Function{Name: name, Path: path}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// extracted is the part of a Function's source that ends up in the generated module.
type extracted struct {
	imports []string
	body    string // dedented def block, decorators included
}

func (f Function) source() (string, error) {
	if f.Source != "" {
		return f.Source, nil
	}
	if f.Path == "" {
		return "", errors.NewIntrospectionError(f.Name, "no source text or source file given", nil)
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", errors.NewIntrospectionError(f.Name, "reading source file", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.NewIntrospectionError(f.Name, "source file "+f.Path+" is empty", nil)
	}
	return string(data), nil
}

func (f Function) extract() (*extracted, error) {
	if !identifierPattern.MatchString(f.Name) {
		return nil, errors.NewIntrospectionError(f.Name, "not a valid Python identifier", nil)
	}

	src, err := f.source()
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	states, err := scanLines(lines)
	if err != nil {
		return nil, errors.NewIntrospectionError(f.Name, err.Error(), nil)
	}

	defPattern := regexp.MustCompile(`^(\s*)def\s+` + regexp.QuoteMeta(f.Name) + `\s*\(`)
	start, indent := -1, 0
	for i, line := range lines {
		if states[i].continued {
			continue
		}
		if m := defPattern.FindStringSubmatch(line); m != nil {
			start, indent = i, len(m[1])
			break
		}
	}
	if start < 0 {
		return nil, errors.NewIntrospectionError(f.Name, "no def statement found in source", nil)
	}

	first := start
	for first > 0 {
		prev := first - 1
		for prev > 0 && states[prev].continued {
			prev--
		}
		if indentOf(lines[prev]) == indent && strings.HasPrefix(strings.TrimSpace(lines[prev]), "@") {
			first = prev
			continue
		}
		break
	}

	end := start + 1
	for end < len(lines) {
		line := lines[end]
		if !states[end].continued && strings.TrimSpace(line) != "" && indentOf(line) <= indent {
			break
		}
		end++
	}
	for end > start+1 && !states[end-1].continued && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}

	block := make([]string, 0, end-first)
	for i := first; i < end; i++ {
		line := lines[i]
		switch {
		case len(line) >= indent && strings.TrimSpace(line[:indent]) == "":
			line = line[indent:]
		case states[i].inString:
		default:
			line = strings.TrimLeft(line, " \t")
		}
		if !states[i].inString {
			line = strings.TrimRight(line, " \t")
		}
		block = append(block, line)
	}

	return &extracted{
		imports: topLevelImports(lines, states, first, end),
		body:    strings.Join(block, "\n"),
	}, nil
}

// topLevelImports returns unindented import statements outside lines[skipFrom:skipTo].
func topLevelImports(lines []string, states []lineState, skipFrom, skipTo int) []string {
	var imports []string
	for i := 0; i < len(lines); i++ {
		if (i >= skipFrom && i < skipTo) || states[i].continued {
			continue
		}
		line := strings.TrimRight(lines[i], " \t")
		if !strings.HasPrefix(line, "import ") && !(strings.HasPrefix(line, "from ") && strings.Contains(line, " import ")) {
			continue
		}
		stmt := []string{line}
		for i+1 < len(lines) && states[i+1].continued {
			i++
			stmt = append(stmt, strings.TrimRight(lines[i], " \t"))
		}
		imports = append(imports, strings.Join(stmt, "\n"))
	}
	return imports
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// lineState describes where a source line starts relative to Python's lexical structure.
type lineState struct {
	continued bool // inside a string, a bracket or after a backslash continuation
	inString  bool // inside a string literal
}

// scanLines tracks string literals, comments and brackets across lines so
// that quoted text never counts as code.
func scanLines(lines []string) ([]lineState, error) {
	states := make([]lineState, len(lines))
	var (
		quote  string // delimiter of the open string literal
		depth  int
		joined bool
	)
	for i, line := range lines {
		states[i] = lineState{continued: quote != "" || depth > 0 || joined, inString: quote != ""}
		joined = false
		escapedEOL := false

	scan:
		for j := 0; j < len(line); j++ {
			c := line[j]
			if quote != "" {
				switch {
				case c == '\\':
					if j == len(line)-1 {
						escapedEOL = true
					}
					j++
				case strings.HasPrefix(line[j:], quote):
					j += len(quote) - 1
					quote = ""
				}
				continue
			}
			switch c {
			case '#':
				break scan
			case '\'', '"':
				quote = string(c)
				if triple := strings.Repeat(quote, 3); strings.HasPrefix(line[j:], triple) {
					quote = triple
					j += 2
				}
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				if depth > 0 {
					depth--
				}
			case '\\':
				joined = j == len(line)-1
			}
		}

		if len(quote) == 1 && !escapedEOL {
			return nil, fmt.Errorf("unterminated string literal on line %d", i+1)
		}
	}
	if quote != "" {
		return nil, fmt.Errorf("unterminated string literal at end of source")
	}
	if depth > 0 {
		return nil, fmt.Errorf("unclosed bracket at end of source")
	}
	return states, nil
}

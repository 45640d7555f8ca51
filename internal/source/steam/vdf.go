package steam

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// KeyValues is a parsed Valve KeyValues block. Values are either string or
// KeyValues for nested blocks.
type KeyValues map[string]any

// Block returns the nested block stored under key, or nil
func (kv KeyValues) Block(key string) KeyValues {
	if b, ok := kv[key].(KeyValues); ok {
		return b
	}
	return nil
}

// String returns the string value stored under key
func (kv KeyValues) String(key string) string {
	s, _ := kv[key].(string)
	return s
}

var errUnbalanced = errors.New("unbalanced braces")

// DecodeKeyValues reads the text KeyValues format used by libraryfolders.vdf
// and appmanifest files. Keys are matched as written.
func DecodeKeyValues(r io.Reader) (KeyValues, error) {
	tokens, err := tokenize(r)
	if err != nil {
		return nil, err
	}
	root := KeyValues{}
	stack := []KeyValues{root}
	var key string
	haveKey := false

	for _, tok := range tokens {
		top := stack[len(stack)-1]
		switch {
		case tok == "{":
			if !haveKey {
				return nil, fmt.Errorf("block without a key")
			}
			child := KeyValues{}
			top[key] = child
			stack = append(stack, child)
			haveKey = false
		case tok == "}":
			if len(stack) == 1 || haveKey {
				return nil, errUnbalanced
			}
			stack = stack[:len(stack)-1]
		case haveKey:
			top[key] = tok.text()
			haveKey = false
		default:
			key = tok.text()
			haveKey = true
		}
	}
	if len(stack) != 1 {
		return nil, errUnbalanced
	}
	return root, nil
}

// token keeps a leading NUL on quoted strings so "{" in a value is not structural
type token string

func (t token) text() string { return strings.TrimPrefix(string(t), "\x00") }

func tokenize(r io.Reader) ([]token, error) {
	var tokens []token
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		for i := 0; i < len(line); i++ {
			c := line[i]
			switch {
			case c == ' ' || c == '\t' || c == '\r':
			case c == '/' && i+1 < len(line) && line[i+1] == '/':
				i = len(line)
			case c == '{' || c == '}':
				tokens = append(tokens, token(line[i:i+1]))
			case c == '"':
				var b strings.Builder
				i++
				for ; i < len(line) && line[i] != '"'; i++ {
					if line[i] == '\\' && i+1 < len(line) {
						i++
						switch line[i] {
						case 'n':
							b.WriteByte('\n')
						case 't':
							b.WriteByte('\t')
						default:
							b.WriteByte(line[i])
						}
						continue
					}
					b.WriteByte(line[i])
				}
				if i >= len(line) {
					return nil, fmt.Errorf("unterminated string: %s", line)
				}
				tokens = append(tokens, token("\x00"+b.String()))
			default:
				start := i
				for i < len(line) && !strings.ContainsRune(" \t\r{}\"", rune(line[i])) {
					i++
				}
				tokens = append(tokens, token(line[start:i]))
				i--
			}
		}
	}
	return tokens, scanner.Err()
}

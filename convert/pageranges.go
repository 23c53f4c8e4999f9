package convert

import (
	"fmt"
	"strconv"
	"strings"
)

// pageRange is one `N[-M]` token of the grammar in spec §3/§8.
type pageRange struct {
	from, to int // to == from when the token had no "-M" part
}

// parsePageRanges validates s against the grammar `N[-M](,\s*N[-M])*`. When
// ignoreInvalid is false, any N > M token is reported as an error, which
// Run returns as a plain error before any DevTools command is sent; it
// is not a devtools.ChromiumError. When true, such
// tokens are silently dropped and the remaining valid tokens are
// rejoined into the returned string.
func parsePageRanges(s string, ignoreInvalid bool) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}

	var valid []string
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		r, err := parseOneRange(tok)
		if err != nil {
			return "", fmt.Errorf("convert: invalid page range %q: %w", tok, err)
		}
		if r.from > r.to {
			if ignoreInvalid {
				continue
			}
			return "", fmt.Errorf("convert: invalid page range %q: start > end", tok)
		}
		valid = append(valid, tok)
	}
	return strings.Join(valid, ","), nil
}

func parseOneRange(tok string) (pageRange, error) {
	if i := strings.Index(tok, "-"); i >= 0 {
		from, err := strconv.Atoi(strings.TrimSpace(tok[:i]))
		if err != nil {
			return pageRange{}, err
		}
		to, err := strconv.Atoi(strings.TrimSpace(tok[i+1:]))
		if err != nil {
			return pageRange{}, err
		}
		return pageRange{from, to}, nil
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return pageRange{}, err
	}
	return pageRange{n, n}, nil
}

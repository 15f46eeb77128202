package index

import (
	"bufio"
	"os"
	"path"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnore rejects leading-dot path components and the .git
// directory.
func DefaultIgnore(relPath string, _ bool) bool {
	for _, seg := range strings.Split(relPath, "/") {
		if seg == "" {
			continue
		}
		if seg == ".git" || strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// gitignoreRule anchors a compiled .gitignore at the directory it was read
// from, so an arbitrary host predicate can be combined with gitignore
// inheritance down a directory chain.
type gitignoreRule struct {
	baseRel string
	ign     *ignore.GitIgnore
}

func readIgnoreLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var lines []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func compileGitignore(dirAbs, dirRel string) (gitignoreRule, bool) {
	lines := readIgnoreLines(path.Join(dirAbs, ".gitignore"))
	if len(lines) == 0 {
		return gitignoreRule{}, false
	}
	return gitignoreRule{baseRel: dirRel, ign: ignore.CompileIgnoreLines(lines...)}, true
}

// ignoredByChain evaluates a chain of gitignore rules (root to nearest
// ancestor) against relPath; the last match wins.
func ignoredByChain(chain []gitignoreRule, relPath string) bool {
	ignored := false
	for _, r := range chain {
		var p string
		if r.baseRel == "" {
			p = relPath
		} else if strings.HasPrefix(relPath, r.baseRel+"/") {
			p = relPath[len(r.baseRel)+1:]
		} else {
			continue
		}
		if p == "" {
			continue
		}
		if r.ign.MatchesPath(p) {
			ignored = true
		}
	}
	return ignored
}

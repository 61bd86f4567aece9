package refindex

import (
	"context"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/erykwalder/quoth/internal/embed"
)

var extRe = regexp.MustCompile(`(\\\.\w+)+$`)

// safeRead reads refFile, re-reading with a growing delay while it still
// holds plain wiki links to oldPath. Editors that rewrite those links after
// a rename may not have finished yet; once the attempts run out the last
// read is returned as is.
func (ix *Index) safeRead(ctx context.Context, refFile, oldPath string) (string, error) {
	stale := staleLinkRe(oldPath)
	var content string
	for i := 0; i < ix.opts.SafeReadAttempts; i++ {
		var err error
		content, err = ix.vault.Read(ctx, refFile)
		if err != nil {
			return "", err
		}
		if !hasStaleLinks(stale, content) {
			break
		}
		if i == ix.opts.SafeReadAttempts-1 {
			ix.log.Debug("stale links remain after rename", "file", refFile, "old_path", oldPath)
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(ix.opts.SafeReadWait * time.Duration(i+1)):
		}
	}
	return content, nil
}

// staleLinkRe matches a wiki link to p.
func staleLinkRe(p string) *regexp.Regexp {
	return regexp.MustCompile(`\[\[(?:` + fileRegex(p) + `)(?:\|[^\]|]+)?\]\]`)
}

// hasStaleLinks reports whether content links to the file re was built
// for outside its quoth blocks.
func hasStaleLinks(re *regexp.Regexp, content string) bool {
	pos := 0
	for _, sp := range embed.Blocks(content) {
		if re.MatchString(content[pos:sp.Start]) {
			return true
		}
		pos = sp.End
	}
	return re.MatchString(content[pos:])
}

// fileRegex matches the ways a link can name p: with any number of its
// leading directories dropped, and with or without its extension.
func fileRegex(p string) string {
	dir, name := path.Split("/" + p)
	dirs := strings.Split(strings.TrimSuffix(dir, "/"), "/")

	var b strings.Builder
	b.WriteString(strings.Repeat("(?:", len(dirs)))
	for _, d := range dirs {
		b.WriteString(regexp.QuoteMeta(d+"/") + ")?")
	}
	b.WriteString(extRe.ReplaceAllString(regexp.QuoteMeta(name), "(?:$0)?"))
	return b.String()
}

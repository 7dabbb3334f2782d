package loader

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	importKeyword   = "import"
	byteOrderMark   = "\ufeff"
	defaultMaxDepth = 64
	maxLineSize     = 1 << 20
)

// Target receives every key/value assignment read from the file tree.
// *registry.Registry satisfies it.
type Target interface {
	Set(key, value string) error
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used to report load progress.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMaxDepth limits how deeply imports may nest. The root file is depth 1.
func WithMaxDepth(depth int) Option {
	return func(l *Loader) {
		if depth > 0 {
			l.maxDepth = depth
		}
	}
}

// WithRelativeImports resolves relative import paths against the directory of
// the importing file instead of the process working directory.
func WithRelativeImports() Option {
	return func(l *Loader) {
		l.relativeImports = true
	}
}

// Loader parses configuration file trees. It keeps no state between calls.
type Loader struct {
	logger          *zap.Logger
	maxDepth        int
	relativeImports bool
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		logger:   zap.NewNop(),
		maxDepth: defaultMaxDepth,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load parses rootPath and every file it imports into target using default options.
func Load(target Target, rootPath string) error {
	return New().Load(target, rootPath)
}

// Load parses rootPath and every file it imports, applying assignments to
// target in file order. Any failure aborts the whole load; target may already
// hold values assigned before the failing line.
func (l *Loader) Load(target Target, rootPath string) error {
	if target == nil {
		return errors.New("loader: nil target")
	}

	l.logger.Info("loading configuration", zap.String("path", rootPath))
	p := &parser{
		target:          target,
		logger:          l.logger,
		maxDepth:        l.maxDepth,
		relativeImports: l.relativeImports,
	}
	if err := p.parseFile(filepath.Clean(rootPath)); err != nil {
		return err
	}
	l.logger.Info("configuration loaded",
		zap.String("path", rootPath),
		zap.Int("files", p.files),
		zap.Int("assignments", p.assignments),
	)
	return nil
}

// parser carries the state of a single Load call. stack holds the paths of
// the files currently open, root first; ids holds the same files as absolute
// paths so that "a.conf" and "./a.conf" compare equal.
type parser struct {
	target          Target
	logger          *zap.Logger
	maxDepth        int
	relativeImports bool

	stack       []string
	ids         []string
	files       int
	assignments int
}

func (p *parser) parseFile(path string) error {
	if len(p.stack) >= p.maxDepth {
		return fmt.Errorf("%w: %q at depth %d", ErrDepthExceeded, path, len(p.stack)+1)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileOpen, err)
	}
	defer file.Close()

	p.stack = append(p.stack, path)
	p.ids = append(p.ids, fileID(path))
	defer func() {
		p.stack = p.stack[:len(p.stack)-1]
		p.ids = p.ids[:len(p.ids)-1]
	}()
	p.files++
	p.logger.Debug("parsing configuration file",
		zap.String("path", path),
		zap.Int("depth", len(p.stack)),
	)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if lineNo == 1 {
			text = strings.TrimPrefix(text, byteOrderMark)
		}
		line := strings.TrimSpace(text)
		if err := p.parseLine(path, line); err != nil {
			// Failures inside an imported file already name their own line.
			var lineErr *LineError
			if errors.As(err, &lineErr) {
				return err
			}
			return &LineError{Path: path, Line: lineNo, Content: line, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func (p *parser) parseLine(current, line string) error {
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	if target, ok := importPath(line); ok {
		return p.importFile(current, target)
	}

	key, value, _ := strings.Cut(line, ":")
	if err := p.target.Set(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
		return err
	}
	p.assignments++
	return nil
}

func (p *parser) importFile(current, target string) error {
	if target == "" {
		return ErrEmptyImport
	}

	resolved := p.resolveImport(current, target)
	id := fileID(resolved)
	if id == p.ids[len(p.ids)-1] {
		return fmt.Errorf("%w: %q", ErrSelfImport, resolved)
	}
	if slices.Contains(p.ids, id) {
		chain := append(slices.Clone(p.stack), resolved)
		return fmt.Errorf("%w: %s", ErrCircularImport, strings.Join(chain, " -> "))
	}

	p.logger.Debug("resolving import",
		zap.String("from", current),
		zap.String("path", resolved),
	)
	return p.parseFile(resolved)
}

// importPath reports whether line is an import directive and returns its path.
// The keyword must be followed by whitespace or end the line, so keys such as
// "imports" or "import:x" are ordinary assignments.
func importPath(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, importKeyword)
	if !ok {
		return "", false
	}
	if rest == "" {
		return "", true
	}
	if r, _ := utf8.DecodeRuneInString(rest); !unicode.IsSpace(r) {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// resolveImport returns the path to open for an import of target from current.
// Relative paths are opened as written, against the working directory, unless
// relative imports are enabled.
func (p *parser) resolveImport(current, target string) string {
	if p.relativeImports && !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(current), target)
	}
	return filepath.Clean(target)
}

func fileID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

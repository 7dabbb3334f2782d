// Package loader reads line-oriented configuration files into a registry of
// pre-declared keys. Each line is trimmed and then treated as blank, a "#"
// comment, an "import <path>" directive, or a "key: value" assignment split on
// the first colon. Imports are processed depth-first before the importing file
// continues, so later lines of an importer override values from its imports.
// Relative import paths are opened as written, against the working directory;
// WithRelativeImports resolves them against the importing file's directory.
package loader

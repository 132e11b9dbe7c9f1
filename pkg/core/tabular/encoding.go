// Package tabular turns raw EDINET data files of unknown encoding into
// row maps. Encoding resolution is statistical detection plus a fixed
// fallback list; reading tries each candidate until one decodes and
// parses cleanly.
package tabular

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// detectPrefixSize bounds how much of a file the detector reads.
const detectPrefixSize = 1024

// fallbackEncodings is the ordered list of encodings known to occur in
// EDINET archives. The detector's guess, if any, is tried before these.
var fallbackEncodings = []string{
	"utf-16",
	"utf-16le",
	"utf-16be",
	"utf-8",
	"shift-jis",
	"euc-jp",
	"iso-8859-1",
	"windows-1252",
}

// CandidateEncodings returns the ordered encodings to try for one file:
// the detected encoding first, then the fixed fallback list, duplicates
// removed while preserving order. It never fails; detection trouble only
// means the fallback list alone is returned.
func CandidateEncodings(path string, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	candidates := make([]string, 0, len(fallbackEncodings)+1)
	if detected := detectEncoding(path, logger); detected != "" {
		candidates = append(candidates, detected)
	}
	candidates = append(candidates, fallbackEncodings...)

	seen := make(map[string]bool, len(candidates))
	unique := candidates[:0]
	for _, enc := range candidates {
		key := normalizeEncodingName(enc)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, enc)
	}
	return unique
}

func detectEncoding(path string, logger *slog.Logger) string {
	f, err := os.Open(path)
	if err != nil {
		logger.Error("error detecting encoding", "file", path, "error", err)
		return ""
	}
	defer f.Close()

	prefix := make([]byte, detectPrefixSize)
	n, err := f.Read(prefix)
	if n == 0 {
		if err != nil && err != io.EOF {
			logger.Error("error detecting encoding", "file", path, "error", err)
		} else {
			logger.Warn("file is empty, cannot detect encoding", "file", path)
		}
		return ""
	}

	result, err := chardet.NewTextDetector().DetectBest(prefix[:n])
	if err != nil || result == nil || result.Charset == "" {
		logger.Warn("charset detection produced no guess", "file", path)
		return ""
	}
	logger.Debug("detected encoding",
		"file", path, "encoding", result.Charset, "confidence", result.Confidence)
	return result.Charset
}

func normalizeEncodingName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

// decoderFor maps an encoding name (detector output or fallback entry) to
// a decoder. Unrecognized names are skipped by the reader.
func decoderFor(name string) (encoding.Encoding, bool) {
	switch normalizeEncodingName(name) {
	case "utf-8", "ascii", "us-ascii":
		return unicode.UTF8BOM, true
	case "utf-16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), true
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), true
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), true
	case "shift-jis", "sjis", "cp932", "windows-31j":
		return japanese.ShiftJIS, true
	case "euc-jp":
		return japanese.EUCJP, true
	case "iso-8859-1", "latin-1", "latin1":
		return charmap.ISO8859_1, true
	case "windows-1252", "cp1252":
		return charmap.Windows1252, true
	}
	return nil, false
}

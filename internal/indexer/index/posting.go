package index

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/errors"
)

// FileRef holds the positions at which a trigram occurs in one file.
type FileRef struct {
	FileID    int32
	Positions []int32
}

// Trigram is one posting-list record: a trigram name and the files it
// occurs in. Two Trigrams with the same Name are the same record.
type Trigram struct {
	Name     string
	FileRefs []FileRef
}

// Size returns the number of (file, position) pairs in t.
func (t Trigram) Size() int {
	n := 0
	for _, ref := range t.FileRefs {
		n += len(ref.Positions)
	}
	return n
}

// Ref returns the FileRef for fileID.
func (t Trigram) Ref(fileID int32) (FileRef, bool) {
	for _, ref := range t.FileRefs {
		if ref.FileID == fileID {
			return ref, true
		}
	}
	return FileRef{}, false
}

// appendRecord writes t in wire format: [TRI](FID)P,P(FID)P
func appendRecord(sb *strings.Builder, t *Trigram) {
	var num [12]byte
	sb.WriteByte('[')
	sb.WriteString(t.Name)
	sb.WriteByte(']')
	for _, ref := range t.FileRefs {
		sb.WriteByte('(')
		sb.Write(strconv.AppendInt(num[:0], int64(ref.FileID), 10))
		sb.WriteByte(')')
		for i, pos := range ref.Positions {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.Write(strconv.AppendInt(num[:0], int64(pos), 10))
		}
	}
}

// DecodeRecord parses one wire-format line. Repeated file IDs within the line
// are coalesced in order of appearance.
func DecodeRecord(line string) (Trigram, error) {
	if !strings.HasPrefix(line, "[") {
		return Trigram{}, malformed(line, "missing '['")
	}
	rest := line[1:]
	nameLen := 0
	for i := 0; i < tokenizer.Width; i++ {
		r, size := utf8.DecodeRuneInString(rest[nameLen:])
		if size == 0 || (r == utf8.RuneError && size == 1) {
			return Trigram{}, malformed(line, "truncated or invalid trigram name")
		}
		nameLen += size
	}
	t := Trigram{Name: rest[:nameLen]}
	rest = rest[nameLen:]
	if !strings.HasPrefix(rest, "]") {
		return Trigram{}, malformed(line, "missing ']'")
	}
	rest = rest[1:]
	if rest == "" {
		return Trigram{}, malformed(line, "record has no file groups")
	}

	byID := make(map[int32]int)
	for rest != "" {
		if rest[0] != '(' {
			return Trigram{}, malformed(line, "expected '('")
		}
		closeIdx := strings.IndexByte(rest, ')')
		if closeIdx < 0 {
			return Trigram{}, malformed(line, "missing ')'")
		}
		fileID, err := parseInt32(rest[1:closeIdx])
		if err != nil {
			return Trigram{}, fmt.Errorf("file id in %q: %w", line, err)
		}
		rest = rest[closeIdx+1:]

		end := strings.IndexByte(rest, '(')
		if end < 0 {
			end = len(rest)
		}
		run := rest[:end]
		rest = rest[end:]
		if run == "" {
			return Trigram{}, malformed(line, fmt.Sprintf("file %d has no positions", fileID))
		}

		i, ok := byID[fileID]
		if !ok {
			i = len(t.FileRefs)
			byID[fileID] = i
			t.FileRefs = append(t.FileRefs, FileRef{FileID: fileID})
		}
		for _, field := range strings.Split(run, ",") {
			pos, err := parseInt32(field)
			if err != nil {
				return Trigram{}, fmt.Errorf("position in %q: %w", line, err)
			}
			t.FileRefs[i].Positions = append(t.FileRefs[i].Positions, pos)
		}
	}
	return t, nil
}

// parseInt32 accepts only non-negative decimal digits.
func parseInt32(s string) (int32, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty number", apperrors.ErrMalformedIndex)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("%w: %q is not a number", apperrors.ErrMalformedIndex, s)
		}
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", apperrors.ErrCapacityExceeded, s)
	}
	return int32(v), nil
}

func malformed(line, reason string) error {
	if len(line) > 64 {
		line = line[:64] + "..."
	}
	return fmt.Errorf("%w: %s in %q", apperrors.ErrMalformedIndex, reason, line)
}

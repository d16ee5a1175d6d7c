// Package index holds the in-memory trigram posting list and its textual
// wire format.
//
// A posting list maps trigram -> file id -> positions. Encoded, each trigram
// is one line:
//
//	[abc](1)0,7(4)2
//	[abd](2)5
//
// Lines are sorted by trigram name, file groups by id, positions ascending.
package index

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/errors"
)

type entry struct {
	trigram Trigram
	byID    map[int32]int
}

// PostingList is safe for concurrent use. Every mutation, and Encode, runs
// as a single critical section.
type PostingList struct {
	mu      sync.RWMutex
	entries []*entry
	byName  map[string]*entry
	size    int
}

func NewPostingList() *PostingList {
	return &PostingList{
		byName: make(map[string]*entry),
	}
}

// Append records that trigram name occurs at position in file fileID.
func (p *PostingList) Append(name string, position, fileID int32) error {
	if position < 0 || fileID < 0 {
		return fmt.Errorf("%w: negative position %d or file id %d", apperrors.ErrInvalidArgument, position, fileID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.appendLocked(name, position, fileID)
	return nil
}

// AppendTokens appends every token of one file under a single lock
// acquisition.
func (p *PostingList) AppendTokens(fileID int32, tokens []tokenizer.Token) error {
	if fileID < 0 {
		return fmt.Errorf("%w: negative file id %d", apperrors.ErrInvalidArgument, fileID)
	}
	if n := len(tokens); n > 0 && tokens[n-1].Position > math.MaxInt32 {
		return fmt.Errorf("file %d has %d trigrams: %w", fileID, n, apperrors.ErrCapacityExceeded)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tok := range tokens {
		p.appendLocked(tok.Term, int32(tok.Position), fileID)
	}
	return nil
}

func (p *PostingList) appendLocked(name string, position, fileID int32) {
	e, ok := p.byName[name]
	if !ok {
		e = &entry{
			trigram: Trigram{Name: name},
			byID:    make(map[int32]int),
		}
		p.byName[name] = e
		p.entries = append(p.entries, e)
	}
	i, ok := e.byID[fileID]
	if !ok {
		i = len(e.trigram.FileRefs)
		e.byID[fileID] = i
		e.trigram.FileRefs = append(e.trigram.FileRefs, FileRef{
			FileID:    fileID,
			Positions: make([]int32, 0, 4),
		})
	}
	e.trigram.FileRefs[i].Positions = append(e.trigram.FileRefs[i].Positions, position)
	p.size++
}

// Size returns the number of (trigram, file, position) triples.
func (p *PostingList) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.size
}

// Len returns the number of distinct trigrams.
func (p *PostingList) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Lookup returns a copy of the record for name.
func (p *PostingList) Lookup(name string) (Trigram, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byName[name]
	if !ok {
		return Trigram{}, false
	}
	return cloneTrigram(e.trigram), true
}

// Trigrams returns a copy of every record in the list's current order:
// insertion order until Encode sorts it.
func (p *PostingList) Trigrams() []Trigram {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Trigram, len(p.entries))
	for i, e := range p.entries {
		out[i] = cloneTrigram(e.trigram)
	}
	return out
}

// Encode sorts the list in place and returns its wire form. An empty list
// encodes to "".
func (p *PostingList) Encode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sortLocked()

	var sb strings.Builder
	for i, e := range p.entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		appendRecord(&sb, &e.trigram)
	}
	return sb.String()
}

func (p *PostingList) sortLocked() {
	sort.Slice(p.entries, func(i, j int) bool {
		return p.entries[i].trigram.Name < p.entries[j].trigram.Name
	})
	for _, e := range p.entries {
		refs := e.trigram.FileRefs
		sort.Slice(refs, func(i, j int) bool {
			return refs[i].FileID < refs[j].FileID
		})
		for i := range refs {
			slices.Sort(refs[i].Positions)
			e.byID[refs[i].FileID] = i
		}
	}
}

// Decode parses the output of Encode. Surrounding whitespace is ignored and
// "" yields an empty list; any malformed line fails the whole decode.
func Decode(encoded string) (*PostingList, error) {
	p := NewPostingList()
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return p, nil
	}
	for lineNo, line := range strings.Split(encoded, "\n") {
		t, err := DecodeRecord(line)
		if err != nil {
			return nil, fmt.Errorf("decoding line %d: %w", lineNo+1, err)
		}
		for _, ref := range t.FileRefs {
			for _, pos := range ref.Positions {
				p.appendLocked(t.Name, pos, ref.FileID)
			}
		}
	}
	return p, nil
}

func cloneTrigram(t Trigram) Trigram {
	refs := make([]FileRef, len(t.FileRefs))
	for i, ref := range t.FileRefs {
		refs[i] = FileRef{
			FileID:    ref.FileID,
			Positions: slices.Clone(ref.Positions),
		}
	}
	return Trigram{Name: t.Name, FileRefs: refs}
}

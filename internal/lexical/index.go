package lexical

import (
	"math"
	"sort"

	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/textproc"
)

const (
	FieldText           = "text"
	FieldSourceFilename = "source_filename"
)

type posting struct {
	doc int
	tf  int
}

type fieldIndex struct {
	postings map[string][]posting
}

// Index is an immutable inverted index over chunk fields.
type Index struct {
	ids    []string
	fields []string
	byName map[string]*fieldIndex
}

type Option func(*buildOptions)

type buildOptions struct {
	fields []string
}

// WithFields indexes the given metadata keys next to text and source_filename.
func WithFields(fields ...string) Option {
	return func(o *buildOptions) {
		o.fields = append(o.fields, fields...)
	}
}

func Build(chunks []models.Chunk, opts ...Option) *Index {
	o := buildOptions{fields: []string{FieldText, FieldSourceFilename}}
	for _, opt := range opts {
		opt(&o)
	}

	idx := &Index{
		ids:    make([]string, len(chunks)),
		byName: make(map[string]*fieldIndex),
	}

	for _, f := range o.fields {
		if _, dup := idx.byName[f]; dup {
			continue
		}
		idx.fields = append(idx.fields, f)
		idx.byName[f] = &fieldIndex{postings: make(map[string][]posting)}
	}

	for doc, c := range chunks {
		idx.ids[doc] = c.ID
		for _, f := range idx.fields {
			freq, _ := textproc.Frequencies(fieldValue(c, f))
			fi := idx.byName[f]
			for term, tf := range freq {
				fi.postings[term] = append(fi.postings[term], posting{doc: doc, tf: tf})
			}
		}
	}

	return idx
}

// Fields lists the indexed field names in boost-key form.
func (idx *Index) Fields() []string {
	return append([]string(nil), idx.fields...)
}

func (idx *Index) Len() int {
	return len(idx.ids)
}

// Search scores documents by the sum over fields of boost * (1+ln tf) * ln(1+N/df).
// Fields without a boost weigh 1.0, negative boosts count as zero. Equal scores
// keep insertion order.
func (idx *Index) Search(query string, boost map[string]float64, topK int) []models.SearchResult {
	if topK <= 0 || len(idx.ids) == 0 {
		return []models.SearchResult{}
	}

	terms := textproc.Tokenize(query)
	if len(terms) == 0 {
		return []models.SearchResult{}
	}

	n := float64(len(idx.ids))
	scores := make(map[int]float64)

	for _, f := range idx.fields {
		weight := 1.0
		if b, ok := boost[f]; ok {
			weight = math.Max(b, 0)
		}
		if weight == 0 {
			continue
		}

		fi := idx.byName[f]
		for _, term := range terms {
			plist := fi.postings[term]
			if len(plist) == 0 {
				continue
			}
			idf := math.Log(1 + n/float64(len(plist)))
			for _, p := range plist {
				scores[p.doc] += weight * (1 + math.Log(float64(p.tf))) * idf
			}
		}
	}

	docs := make([]int, 0, len(scores))
	for doc, score := range scores {
		if score > 0 {
			docs = append(docs, doc)
		}
	}
	sort.Ints(docs)
	sort.SliceStable(docs, func(i, j int) bool {
		return scores[docs[i]] > scores[docs[j]]
	})

	if len(docs) > topK {
		docs = docs[:topK]
	}

	results := make([]models.SearchResult, len(docs))
	for i, doc := range docs {
		results[i] = models.SearchResult{
			ChunkID: idx.ids[doc],
			Score:   scores[doc],
			Source:  models.SourceLexical,
		}
	}
	return results
}

func fieldValue(c models.Chunk, field string) string {
	switch field {
	case FieldText:
		return c.Text
	case FieldSourceFilename:
		return c.SourceFilename
	default:
		return c.Metadata[field]
	}
}

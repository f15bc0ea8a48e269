package datasets

import "strings"

// Reserved vocabulary entries. Id 0 is used for padding so padded positions
// contribute nothing to pooled representations; id 1 is the fallback for
// words never seen during fitting.
const (
	PaddingID   int32 = 0
	UnknownID   int32 = 1
	paddingWord       = "@@padding@@"
	unknownWord       = "@@unknown@@"
)

// WordIndexer is a mutable vocabulary builder shared between the solver and
// its pretraining tasks. Fitting is additive: fitting a second dataset
// extends the vocabulary rather than replacing it, so pretraining data and
// main training data can both contribute words to a single index.
type WordIndexer struct {
	wordToID map[string]int32
	idToWord []string
}

// NewWordIndexer creates an indexer with only the reserved entries.
func NewWordIndexer() *WordIndexer {
	ix := &WordIndexer{
		wordToID: make(map[string]int32),
		idToWord: []string{paddingWord, unknownWord},
	}
	ix.wordToID[paddingWord] = PaddingID
	ix.wordToID[unknownWord] = UnknownID
	return ix
}

// Tokenize splits text into lowercase whitespace-separated tokens.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// FitWordDictionary adds every word appearing in the dataset's text slots to
// the vocabulary. Already-known words keep their ids.
func (ix *WordIndexer) FitWordDictionary(dataset *TextDataset) {
	for _, inst := range dataset.Instances {
		for _, text := range inst.Texts {
			for _, word := range Tokenize(text) {
				ix.add(word)
			}
		}
	}
}

func (ix *WordIndexer) add(word string) int32 {
	if id, ok := ix.wordToID[word]; ok {
		return id
	}
	id := int32(len(ix.idToWord))
	ix.wordToID[word] = id
	ix.idToWord = append(ix.idToWord, word)
	return id
}

// Index returns the id for a word, or UnknownID if the word was never fit.
func (ix *WordIndexer) Index(word string) int32 {
	if id, ok := ix.wordToID[word]; ok {
		return id
	}
	return UnknownID
}

// IndexText tokenizes text and returns the id sequence.
func (ix *WordIndexer) IndexText(text string) []int32 {
	words := Tokenize(text)
	ids := make([]int32, len(words))
	for i, w := range words {
		ids[i] = ix.Index(w)
	}
	return ids
}

// Word returns the word for an id, or the unknown word for out-of-range ids.
func (ix *WordIndexer) Word(id int32) string {
	if id < 0 || int(id) >= len(ix.idToWord) {
		return unknownWord
	}
	return ix.idToWord[id]
}

// VocabSize returns the number of entries, reserved ids included.
func (ix *WordIndexer) VocabSize() int { return len(ix.idToWord) }

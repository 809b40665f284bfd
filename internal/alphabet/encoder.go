package alphabet

import "strings"

// Encoder turns token sequences into symbol strings using one dictionary
type Encoder struct {
	dict Dictionary
	norm Normalizer
}

// NewEncoder creates an encoder for dict with the given normalization
func NewEncoder(dict Dictionary, norm Normalizer) *Encoder {
	return &Encoder{dict: dict, norm: norm}
}

// Encode concatenates the symbols of the tokens in order. Dropped tokens and
// tokens missing from the dictionary leave no trace in the output.
func (e *Encoder) Encode(tokens []string) string {
	s, _ := e.EncodeWithGaps(tokens)
	return s
}

// EncodeWithGaps is Encode that also reports how many tokens were missing
// from the dictionary. Tokens removed by normalization are not gaps.
func (e *Encoder) EncodeWithGaps(tokens []string) (string, int) {
	var b strings.Builder
	gaps := 0
	for _, tok := range tokens {
		key, ok := e.norm.Apply(tok)
		if !ok {
			continue
		}
		sym, ok := e.dict[key]
		if !ok {
			gaps++
			continue
		}
		b.WriteString(sym)
	}
	return b.String(), gaps
}

// Encode maps tokens through dict with no normalization
func Encode(tokens []string, dict Dictionary) string {
	return NewEncoder(dict, Normalizer{}).Encode(tokens)
}

// Package lexicon holds the Spanish word weights used by the keyword scorer.
// The maps are built once at init and only exposed through lookup functions.
package lexicon

var positive = map[string]float64{
	"excelente":     0.9,
	"increíble":     0.9,
	"perfecto":      0.9,
	"maravilloso":   0.85,
	"fantástico":    0.85,
	"excepcional":   0.9,
	"espectacular":  0.85,
	"impresionante": 0.8,

	"genial":       0.7,
	"bueno":        0.6,
	"bien":         0.5,
	"recomendable": 0.7,
	"recomiendo":   0.7,
	"satisfecho":   0.7,
	"contento":     0.7,
	"feliz":        0.7,
	"encantado":    0.8,

	"calidad":   0.5,
	"rápido":    0.5,
	"funciona":  0.4,
	"mejor":     0.6,
	"gran":      0.5,
	"útil":      0.5,
	"práctico":  0.5,
	"eficiente": 0.6,
	"duradero":  0.6,

	"me gusta":            0.6,
	"me encanta":          0.8,
	"amo":                 0.8,
	"perfección":          0.9,
	"superó expectativas": 0.8,
}

var negative = map[string]float64{
	"pésimo":   -0.9,
	"terrible": -0.9,
	"horrible": -0.9,
	"basura":   -0.95,
	"fraude":   -0.95,
	"estafa":   -0.95,
	"desastre": -0.85,
	"nefasto":  -0.85,

	"malo":          -0.7,
	"mal":           -0.6,
	"defectuoso":    -0.8,
	"roto":          -0.7,
	"decepcionante": -0.7,
	"decepcionado":  -0.7,
	"insatisfecho":  -0.7,
	"molesto":       -0.6,

	"no funciona": -0.8,
	"no sirve":    -0.8,
	"falló":       -0.7,
	"falla":       -0.7,
	"error":       -0.6,
	"problema":    -0.6,
	"defecto":     -0.7,
	"rompió":      -0.7,
	"dañado":      -0.7,

	"no recomiendo": -0.8,
	"no lo compren": -0.85,
	"mala calidad":  -0.8,
	"peor":          -0.6,

	"lento":  -0.5,
	"demora": -0.5,
	"tardó":  -0.4,
}

var negations = map[string]struct{}{
	"no":      {},
	"nunca":   {},
	"jamás":   {},
	"tampoco": {},
	"ni":      {},
	"sin":     {},
}

// Positive returns the weight of a positive word or two-word phrase.
func Positive(term string) (float64, bool) {
	w, ok := positive[term]
	return w, ok
}

// Negative returns the (negative) weight of a negative word or two-word phrase.
func Negative(term string) (float64, bool) {
	w, ok := negative[term]
	return w, ok
}

// IsNegation reports whether word flips the polarity of the next match.
func IsNegation(word string) bool {
	_, ok := negations[word]
	return ok
}

// Sizes returns the number of positive and negative entries.
func Sizes() (int, int) {
	return len(positive), len(negative)
}

package slug

import "strings"

// translit romanizes lowercase Cyrillic and Greek letters. Accented Greek
// vowels and й, ё are listed because folding would otherwise strip them to a
// different base letter.
var translit = strings.NewReplacer(
	// Cyrillic
	"а", "a", "б", "b", "в", "v", "г", "g", "д", "d", "е", "e", "ё", "yo",
	"ж", "zh", "з", "z", "и", "i", "й", "y", "к", "k", "л", "l", "м", "m",
	"н", "n", "о", "o", "п", "p", "р", "r", "с", "s", "т", "t", "у", "u",
	"ф", "f", "х", "kh", "ц", "ts", "ч", "ch", "ш", "sh", "щ", "shch",
	"ъ", "", "ы", "y", "ь", "", "э", "e", "ю", "yu", "я", "ya",
	"і", "i", "ї", "yi", "є", "ye", "ґ", "g",

	// Greek
	"α", "a", "β", "v", "γ", "g", "δ", "d", "ε", "e", "ζ", "z", "η", "i",
	"θ", "th", "ι", "i", "κ", "k", "λ", "l", "μ", "m", "ν", "n", "ξ", "x",
	"ο", "o", "π", "p", "ρ", "r", "σ", "s", "ς", "s", "τ", "t", "υ", "y",
	"φ", "f", "χ", "ch", "ψ", "ps", "ω", "o",
	"ά", "a", "έ", "e", "ή", "i", "ί", "i", "ό", "o", "ύ", "y", "ώ", "o",
	"ϊ", "i", "ϋ", "y", "ΐ", "i", "ΰ", "y",
)

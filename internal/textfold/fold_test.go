package textfold

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "Categorie", Fold("Catégorie"))
	assert.Equal(t, "oeuvre", Fold("œuvre"))
	assert.Equal(t, "Strasse", Fold("Straße"))
	assert.Equal(t, "Noel", Fold("Noël"))
}

func TestKey(t *testing.T) {
	tests := map[string]string{
		"  Prix (€) ":        "prix",
		"Sous-Catégorie":     "sous categorie",
		"Couleur principale": "couleur principale",
		"URL__Images":        "url images",
		"":                   "",
		"---":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Key(in), "input %q", in)
	}
}

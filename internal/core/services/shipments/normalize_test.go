package shipments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"full width", "SS LADLE \uff31\uff34\uff39\uff1a\uff15\uff10 \uff30\uff23\uff33", "SS LADLE QTY:50 PCS"},
		{"ideographic space", "COPPER\u3000MUG", "COPPER MUG"},
		{"no-break space", "SS\u00a0LADLE", "SS LADLE"},
		{"narrow no-break space", "SS\u202fLADLE", "SS LADLE"},
		{"tabs and newlines", "SS\tLADLE\r\n", "SS LADLE  "},
		{"zero width space", "SS\u200bLADLE", "SSLADLE"},
		{"bell", "SS\x07 LADLE", "SS LADLE"},
		{"byte order mark", "\ufeffGLASS BOWL", "GLASS BOWL"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDescription(tt.input))
		})
	}
}

func TestNormalizeDescription_ASCIIUnchanged(t *testing.T) {
	inputs := []string{
		"MILD STEEL BASKET (MS-101) QTY: 500 PCS USD/2.50",
		"  double  spaces  kept  ",
		"~!@#$%^&*()_+{}|:\"<>?",
	}
	for _, in := range inputs {
		assert.Equal(t, in, NormalizeDescription(in))
	}
}

func TestNormalizeDescription_Idempotent(t *testing.T) {
	in := "ＡＢ－２２ WOODEN SPOON"
	once := NormalizeDescription(in)
	assert.Equal(t, "AB-22 WOODEN SPOON", once)
	assert.Equal(t, once, NormalizeDescription(once))
}

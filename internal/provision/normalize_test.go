package provision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSubdomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Clínica São João!!", "clinica-sao-joao"},
		{"clinica-exemplo", "clinica-exemplo"},
		{"Teste 1", "teste-1"},
		{"  --Consultório_Três--  ", "consultorio-tres"},
		{"AÇÃO médica", "acao-medica"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSubdomain(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, in := range []string{"Clínica São João!!", "teste-1", "A B C"} {
		once := NormalizeSubdomain(in)
		assert.Equal(t, once, NormalizeSubdomain(once), "input %q", in)
	}
}

func TestValidSubdomain(t *testing.T) {
	assert.True(t, ValidSubdomain("clinica-sao-joao"))
	assert.True(t, ValidSubdomain("teste-1"))
	assert.False(t, ValidSubdomain(""))
	assert.False(t, ValidSubdomain("Clinica"))
	assert.False(t, ValidSubdomain("cl!nica"))
}

package testcase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodePlainTextUnchanged(t *testing.T) {
	assert.Equal(t, "1 2\n3\n", Decode([]byte("1 2\n3\n")))
}

func TestDecodeStripsBOM(t *testing.T) {
	assert.Equal(t, "42\n", Decode([]byte("\xEF\xBB\xBF42\n")))
}

func TestDecodeStripsRTF(t *testing.T) {
	raw := `{\rtf1\ansi\ansicpg1252\cocoartf2709
{\fonttbl\f0\fswiss\fcharset0 Helvetica;}
{\colortbl;\red255\green255\blue255;}
\pard\tx566\pardirnatural\partightenfactor0

\f0\fs24 \cf0 3 4\
5 6\par
7\tab 8}`

	assert.Equal(t, "3 4\n5 6\n7\t8", Decode([]byte(raw)))
}

func TestDecodeRTFEscapes(t *testing.T) {
	raw := `{\rtf1 a\{b\}\\c \'e9 \u8212\'97 d}`
	assert.Equal(t, "a{b}\\c é — d", Decode([]byte(raw)))
}

func TestDecodeRTFSkipsIgnorableDestinations(t *testing.T) {
	raw := `{\rtf1{\*\generator Riched20;}{\info{\title x}}hello}`
	assert.Equal(t, "hello", Decode([]byte(raw)))
}

func TestDecodeRTFHexUsesDeclaredCodePage(t *testing.T) {
	assert.Equal(t, "“€”", Decode([]byte(`{\rtf1\ansi\ansicpg1252 \'93\'80\'94}`)))
	assert.Equal(t, "Аб", Decode([]byte(`{\rtf1\ansi\ansicpg1251 \'c0\'e1}`)))
}

func TestDecodeRTFBoundsUnicodeSkip(t *testing.T) {
	assert.Equal(t, "éafter", Decode([]byte(`{\rtf1\uc99999\u233 ????after}`)))
	assert.Equal(t, "é?x", Decode([]byte(`{\rtf1\uc-5\u233 ?x}`)))
}

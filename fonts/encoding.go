package fonts

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/wudi/pdfcore/names"
)

// Encoding maps the single-byte codes of a simple font to Unicode. Zero
// means the code has no known mapping.
type Encoding [256]rune

var (
	winAnsiEncoding  = fromCharmap(charmap.Windows1252)
	macRomanEncoding = fromCharmap(charmap.Macintosh)
	standardEncoding = buildStandard()
)

func fromCharmap(cm *charmap.Charmap) Encoding {
	var e Encoding
	for i := 32; i < 256; i++ {
		if r := cm.DecodeByte(byte(i)); r != '�' {
			e[i] = r
		}
	}
	return e
}

// standardHigh lists the upper half of the Adobe standard encoding that
// differs from Latin-1.
var standardHigh = map[byte]rune{
	0xa1: '¡', 0xa2: '¢', 0xa3: '£', 0xa4: '⁄', 0xa5: '¥', 0xa6: 'ƒ', 0xa7: '§',
	0xa8: '¤', 0xa9: '\'', 0xaa: '“', 0xab: '«', 0xac: '‹', 0xad: '›', 0xae: 'ﬁ',
	0xaf: 'ﬂ', 0xb1: '–', 0xb2: '†', 0xb3: '‡', 0xb4: '·', 0xb6: '¶', 0xb7: '•',
	0xb8: '‚', 0xb9: '„', 0xba: '”', 0xbb: '»', 0xbc: '…', 0xbd: '‰', 0xbf: '¿',
	0xc1: '`', 0xc2: '´', 0xc3: 'ˆ', 0xc4: '˜', 0xc5: '¯', 0xc6: '˘', 0xc7: '˙',
	0xc8: '¨', 0xca: '˚', 0xcb: '¸', 0xcd: '˝', 0xce: '˛', 0xcf: 'ˇ', 0xd0: '—',
	0xe1: 'Æ', 0xe3: 'ª', 0xe8: 'Ł', 0xe9: 'Ø', 0xea: 'Œ', 0xeb: 'º', 0xf1: 'æ',
	0xf5: 'ı', 0xf8: 'ł', 0xf9: 'ø', 0xfa: 'œ', 0xfb: 'ß',
}

func buildStandard() Encoding {
	var e Encoding
	for i := 32; i < 127; i++ {
		e[i] = rune(i)
	}
	e['\''] = '’'
	e['`'] = '‘'
	for b, r := range standardHigh {
		e[b] = r
	}
	return e
}

// BaseEncoding returns the predefined encoding named id.
func BaseEncoding(id names.ID) (Encoding, bool) {
	switch id {
	case names.WinAnsiEncoding:
		return winAnsiEncoding, true
	case names.MacRomanEncoding:
		return macRomanEncoding, true
	case names.StandardEncoding:
		return standardEncoding, true
	}
	return Encoding{}, false
}

var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#', "dollar": '$',
	"percent": '%', "ampersand": '&', "quotesingle": '\'', "parenleft": '(',
	"parenright": ')', "asterisk": '*', "plus": '+', "comma": ',', "hyphen": '-',
	"period": '.', "slash": '/', "zero": '0', "one": '1', "two": '2', "three": '3',
	"four": '4', "five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=', "greater": '>',
	"question": '?', "at": '@', "bracketleft": '[', "backslash": '\\',
	"bracketright": ']', "asciicircum": '^', "underscore": '_', "grave": '`',
	"braceleft": '{', "bar": '|', "braceright": '}', "asciitilde": '~',
	"quoteleft": '‘', "quoteright": '’', "quotedblleft": '“', "quotedblright": '”',
	"quotesinglbase": '‚', "quotedblbase": '„', "bullet": '•', "endash": '–',
	"emdash": '—', "ellipsis": '…', "dagger": '†', "daggerdbl": '‡',
	"trademark": '™', "copyright": '©', "registered": '®', "degree": '°',
	"Euro": '€', "fi": 'ﬁ', "fl": 'ﬂ', "ff": 'ﬀ', "ffi": 'ﬃ', "ffl": 'ﬄ',
	"germandbls": 'ß', "AE": 'Æ', "ae": 'æ', "OE": 'Œ', "oe": 'œ', "Oslash": 'Ø',
	"oslash": 'ø', "Lslash": 'Ł', "lslash": 'ł', "dotlessi": 'ı', "section": '§',
	"paragraph": '¶', "periodcentered": '·', "guillemotleft": '«',
	"guillemotright": '»', "guilsinglleft": '‹', "guilsinglright": '›',
	"exclamdown": '¡', "questiondown": '¿', "cent": '¢', "sterling": '£',
	"yen": '¥', "currency": '¤', "florin": 'ƒ', "perthousand": '‰',
	"minus": '−', "multiply": '×', "divide": '÷', "plusminus": '±',
	"mu": 'µ', "nbspace": ' ', "sfthyphen": '­', "fraction": '⁄',
	"ordfeminine": 'ª', "ordmasculine": 'º', "brokenbar": '¦', "logicalnot": '¬',
	"onehalf": '½', "onequarter": '¼', "threequarters": '¾', "Eth": 'Ð',
	"eth": 'ð', "Thorn": 'Þ', "thorn": 'þ', "macron": '¯', "acute": '´',
	"cedilla": '¸', "dieresis": '¨', "circumflex": 'ˆ', "tilde": '˜',
}

// accents maps glyph-name suffixes to combining marks.
var accents = map[string]rune{
	"acute": '́', "grave": '̀', "circumflex": '̂', "dieresis": '̈',
	"tilde": '̃', "ring": '̊', "cedilla": '̧', "caron": '̌',
	"macron": '̄', "breve": '̆', "dotaccent": '̇', "ogonek": '̨',
	"hungarumlaut": '̋',
}

// GlyphRune maps a glyph name to the rune it stands for.
func GlyphRune(name string) (rune, bool) {
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	if len(name) == 1 && name[0] < 0x80 {
		return rune(name[0]), true
	}
	if strings.HasPrefix(name, "uni") && len(name) == 7 {
		if v, err := strconv.ParseUint(name[3:], 16, 32); err == nil {
			return rune(v), true
		}
	}
	if strings.HasPrefix(name, "u") && len(name) >= 5 && len(name) <= 7 {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil {
			return rune(v), true
		}
	}
	// Accented letters such as "eacute" compose their base and mark.
	if len(name) > 1 {
		if mark, ok := accents[name[1:]]; ok && name[0] < 0x80 {
			s := norm.NFC.String(string([]rune{rune(name[0]), mark}))
			if rs := []rune(s); len(rs) == 1 {
				return rs[0], true
			}
		}
	}
	return 0, false
}

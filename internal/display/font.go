package display

import "strings"

// GlyphSize is the edge length of a font cell.
const GlyphSize = 8

// glyphArt holds 5x7 letter shapes, top row first. Each glyph is placed in an
// 8x8 cell one column in from the left, leaving the bottom row empty.
//
// Besides digits and letters the font carries the remote key labels used while
// learning (* # ^ $ < > ~ for star, hash, up, down, left, right, OK) and four
// tunnel symbols (% & @ !).
var glyphArt = map[byte]string{
	'0': ".###. #...# #..## #.#.# ##..# #...# .###.",
	'1': "..#.. .##.. ..#.. ..#.. ..#.. ..#.. .###.",
	'2': ".###. #...# ....# ...#. ..#.. .#... #####",
	'3': "##### ...#. ..#.. ...#. ....# #...# .###.",
	'4': "...#. ..##. .#.#. #..#. ##### ...#. ...#.",
	'5': "##### #.... ####. ....# ....# #...# .###.",
	'6': "..##. .#... #.... ####. #...# #...# .###.",
	'7': "##### ....# ...#. ..#.. .#... .#... .#...",
	'8': ".###. #...# #...# .###. #...# #...# .###.",
	'9': ".###. #...# #...# .#### ....# ...#. .##..",
	'A': ".###. #...# #...# ##### #...# #...# #...#",
	'B': "####. #...# #...# ####. #...# #...# ####.",
	'C': ".###. #...# #.... #.... #.... #...# .###.",
	'D': "###.. #..#. #...# #...# #...# #..#. ###..",
	'E': "##### #.... #.... ####. #.... #.... #####",
	'F': "##### #.... #.... ####. #.... #.... #....",
	'G': ".###. #...# #.... #.### #...# #...# .####",
	'H': "#...# #...# #...# ##### #...# #...# #...#",
	'I': ".###. ..#.. ..#.. ..#.. ..#.. ..#.. .###.",
	'J': "..### ...#. ...#. ...#. ...#. #..#. .##..",
	'K': "#...# #..#. #.#.. ##... #.#.. #..#. #...#",
	'L': "#.... #.... #.... #.... #.... #.... #####",
	'M': "#...# ##.## #.#.# #.#.# #...# #...# #...#",
	'N': "#...# #...# ##..# #.#.# #..## #...# #...#",
	'O': ".###. #...# #...# #...# #...# #...# .###.",
	'P': "####. #...# #...# ####. #.... #.... #....",
	'Q': ".###. #...# #...# #...# #.#.# #..#. .##.#",
	'R': "####. #...# #...# ####. #.#.. #..#. #...#",
	'S': ".#### #.... #.... .###. ....# ....# ####.",
	'T': "##### ..#.. ..#.. ..#.. ..#.. ..#.. ..#..",
	'U': "#...# #...# #...# #...# #...# #...# .###.",
	'V': "#...# #...# #...# #...# #...# .#.#. ..#..",
	'W': "#...# #...# #...# #.#.# #.#.# #.#.# .#.#.",
	'X': "#...# #...# .#.#. ..#.. .#.#. #...# #...#",
	'Y': "#...# #...# .#.#. ..#.. ..#.. ..#.. ..#..",
	'Z': "##### ....# ...#. ..#.. .#... #.... #####",
	'.': "..... ..... ..... ..... ..... .##.. .##..",
	'#': ".#.#. .#.#. ##### .#.#. ##### .#.#. .#.#.",
	'*': "..... ..#.. #.#.# .###. #.#.# ..#.. .....",
	'^': "..#.. .###. #.#.# ..#.. ..#.. ..#.. ..#..",
	'$': "..#.. ..#.. ..#.. ..#.. #.#.# .###. ..#..",
	'<': "..... ..#.. .#... ##### .#... ..#.. .....",
	'>': "..... ..#.. ...#. ##### ...#. ..#.. .....",
	'~': "..... .###. #...# #...# #...# .###. .....",
	'%': "#...# .#.#. ..#.. ..#.. ..#.. .###. #####",
	'&': "##### .#.#. ..#.. ..#.. .#.#. #...# #####",
	'@': "...#. ..#.. .#... ####. ..#.. .#... #....",
	'!': ".###. #.#.# #.#.# #.### #...# #...# .###.",
	' ': "..... ..... ..... ..... ..... ..... .....",
}

// font maps a character to its 8x8 bitmap. Row 0 is the top row; bit c of a
// row is column c counted from the left.
var font = buildFont()

func buildFont() map[byte][GlyphSize]uint8 {
	out := make(map[byte][GlyphSize]uint8, len(glyphArt))
	for ch, art := range glyphArt {
		var g [GlyphSize]uint8
		for r, row := range strings.Fields(art) {
			for c, px := range row {
				if px == '#' {
					g[r] |= 1 << uint(c+1)
				}
			}
		}
		out[ch] = g
	}
	return out
}

// Glyph returns the bitmap for ch. Lower-case letters use the upper-case
// shape; unknown characters render blank.
func Glyph(ch byte) ([GlyphSize]uint8, bool) {
	if ch >= 'a' && ch <= 'z' {
		ch -= 'a' - 'A'
	}
	g, ok := font[ch]
	return g, ok
}
